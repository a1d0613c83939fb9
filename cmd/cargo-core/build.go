// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/internal/manifest"
	"github.com/kraklabs/cargo-core/internal/output"
	"github.com/kraklabs/cargo-core/internal/ui"
	"github.com/kraklabs/cargo-core/pkg/compiler"
	"github.com/kraklabs/cargo-core/pkg/fingerprint"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/scheduler"
	"github.com/kraklabs/cargo-core/pkg/unitgraph"
)

func runBuild(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	release := fs.Bool("release", false, "Build with the release profile")
	jobs := fs.IntP("jobs", "j", 0, "Number of parallel jobs (default: the jobserver budget or NumCPU)")
	keepGoing := fs.Bool("keep-going", false, "Continue building independent units after a failure")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cargo-core build [options]

Build the unit graph for the project's root package.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a, err := newApp(globals)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer a.Close()

	profileName := "dev"
	if *release {
		profileName = "release"
	}

	graph, bs, err := prepareBuild(a, profileName)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	jobsExplicit := fs.Changed("jobs")
	effectiveJobs := *jobs
	if effectiveJobs <= 0 {
		effectiveJobs = a.cfg.Jobs
	}
	if effectiveJobs <= 0 {
		effectiveJobs = runtime.NumCPU()
	}

	metrics := scheduler.NewMetrics()
	bs.metrics = metrics

	sched := scheduler.New(graph, scheduler.Hooks{
		IsFresh:        bs.isFresh,
		RefreshOutputs: bs.refreshOutputs,
		Compile:        bs.compile,
		OnMessage:      bs.onMessage,
	}, scheduler.Options{
		Jobs:         effectiveJobs,
		JobsExplicit: jobsExplicit,
		KeepGoing:    *keepGoing,
		TargetDir:    bs.targetDir,
		Metrics:      metrics,
		Warnf: func(format string, args ...any) {
			if !globals.Quiet {
				ui.Warningf(format, args...)
			}
		},
	})

	report, err := sched.Run(context.Background())
	if globals.JSON {
		if encErr := output.JSON(report); encErr != nil {
			errors.FatalError(encErr, true)
		}
	} else if !globals.Quiet {
		printReport(report)
	}
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if report.Failed() {
		os.Exit(errors.ExitBuild)
	}
}

func printReport(report scheduler.Report) {
	for _, o := range report.Outcomes {
		name := fmt.Sprintf("%s (%s:%s)", o.Unit.Package, o.Unit.Target.Kind, o.Unit.Target.Name)
		switch {
		case o.Skipped:
			ui.Warningf("skipped %s", name)
		case o.Err != nil:
			ui.Errorf("failed %s: %v", name, o.Err)
		case o.Fresh:
			ui.Success(fmt.Sprintf("%s (fresh)", name))
		default:
			ui.Success(name)
		}
	}
}

// prepareBuild resolves the project, builds its unit graph for
// profileName, and returns a buildState ready to drive a scheduler.
func prepareBuild(a *app, profileName string) (*unitgraph.Graph, *buildState, error) {
	reg, loaded, err := a.buildRegistry()
	if err != nil {
		return nil, nil, errors.NewSourceError("could not assemble package sources", err.Error(), "check dependency paths in Cargo.toml", err)
	}

	res, err := solveAgainst(a, reg, false, false)
	if err != nil {
		return nil, nil, err
	}

	provider, err := a.materialize(reg, res, loaded)
	if err != nil {
		return nil, nil, err
	}

	profile := manifest.ResolveProfile(a.file, profileName)
	host := pkgid.Host()

	graph, err := unitgraph.Build(unitgraph.Request{
		Resolve:    res,
		Mode:       pkgid.ModeBuild,
		Profile:    profile,
		HostKind:   host,
		TargetKind: host,
	}, provider)
	if err != nil {
		return nil, nil, errors.NewInternalError("could not build unit graph", err.Error(), "report this as a bug", err)
	}

	targetDir := a.cfg.TargetDir
	if !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(a.rootDir, targetDir)
	}
	profileDir := "debug"
	if profileName == "release" {
		profileDir = "release"
	}
	outDir := filepath.Join(targetDir, profileDir, "deps")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, errors.NewBuildError("could not create output directory", err.Error(), "check write permissions on "+targetDir, err)
	}

	fpStore, err := fingerprint.NewStore(filepath.Join(targetDir, profileDir, ".fingerprint"))
	if err != nil {
		return nil, nil, errors.NewFingerprintError("could not open fingerprint store", err.Error(), "check write permissions on "+targetDir, err)
	}

	bs := &buildState{
		app:          a,
		graph:        graph,
		provider:     provider,
		outDir:       outDir,
		targetDir:    targetDir,
		fpStore:      fpStore,
		fingerprints: make(map[*unitgraph.Unit]string),
		hostTriple:   runtime.GOARCH + "-" + runtime.GOOS,
	}
	return graph, bs, nil
}

// buildState carries everything the scheduler hooks need: the output
// directory, the fingerprint store, and the per-unit digest of every
// unit already compiled or found fresh this run, since a unit's own
// fingerprint folds in its dependencies' digests (§4.4).
type buildState struct {
	app        *app
	graph      *unitgraph.Graph
	provider   unitgraph.MapProvider
	outDir     string
	targetDir  string
	fpStore    *fingerprint.Store
	hostTriple string
	metrics    *scheduler.Metrics

	mu           sync.Mutex
	fingerprints map[*unitgraph.Unit]string

	rustcVersionOnce sync.Once
	rustcVersion     string
}

func (bs *buildState) buildKey(u *unitgraph.Unit) string {
	return fingerprint.BuildKey(u.Package.Name, unitDistinguisher(u))
}

func unitDistinguisher(u *unitgraph.Unit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s", u.Target.Kind, u.Target.Name, u.Profile.Name, u.Kind, u.Mode)
	names := make([]string, 0, len(u.Features))
	for f, on := range u.Features {
		if on {
			names = append(names, f)
		}
	}
	sort.Strings(names)
	b.WriteString("|")
	b.WriteString(strings.Join(names, ","))
	return b.String()
}

func (bs *buildState) profileHash(p pkgid.Profile) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", p)))
	return hex.EncodeToString(sum[:8])
}

func (bs *buildState) rustcVersion() string {
	bs.rustcVersionOnce.Do(func() {
		out, err := exec.Command("rustc", "--version").Output()
		if err != nil {
			bs.rustcVersion = "unknown"
			return
		}
		bs.rustcVersion = strings.TrimSpace(string(out))
	})
	return bs.rustcVersion
}

func (bs *buildState) depFingerprints(u *unitgraph.Unit) []string {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	var out []string
	for _, dep := range bs.graph.Deps[u] {
		if digest, ok := bs.fingerprints[dep.Unit]; ok {
			out = append(out, digest)
		}
	}
	return out
}

func (bs *buildState) recordFingerprint(u *unitgraph.Unit, digest string) {
	bs.mu.Lock()
	bs.fingerprints[u] = digest
	bs.mu.Unlock()
}

func (bs *buildState) inputsFor(u *unitgraph.Unit) fingerprint.Inputs {
	var sources []fingerprint.SourceFile
	if info, err := os.Stat(u.Target.SrcPath); err == nil {
		sources = append(sources, fingerprint.SourceFile{
			Path:  fingerprint.NormalizeSourcePath(u.Package.Source.URL, u.Target.SrcPath),
			MTime: info.ModTime().Unix(),
			Size:  info.Size(),
		})
	}
	return fingerprint.Inputs{
		CompilerVersion: bs.rustcVersion(),
		TargetTriple:    u.Kind.String(),
		ProfileHash:     bs.profileHash(u.Profile),
		Sources:         sources,
		DepFingerprints: bs.depFingerprints(u),
	}
}

func (bs *buildState) isFresh(u *unitgraph.Unit) (bool, error) {
	fp := fingerprint.Compute(bs.inputsFor(u))
	status := bs.fpStore.Compare(bs.buildKey(u), fp)
	if status == fingerprint.Fresh {
		bs.recordFingerprint(u, fp.Digest)
		return true, nil
	}
	return false, nil
}

func (bs *buildState) refreshOutputs(u *unitgraph.Unit) error {
	return nil
}

func (bs *buildState) externsFor(u *unitgraph.Unit) []compiler.Extern {
	var externs []compiler.Extern
	for _, dep := range bs.graph.Deps[u] {
		externs = append(externs, compiler.Extern{
			Name: dep.ExternName,
			Path: filepath.Join(bs.outDir, rlibName(dep.Unit.Target.Name)),
		})
	}
	return externs
}

func rlibName(crateName string) string {
	return "lib" + strings.ReplaceAll(crateName, "-", "_") + ".rlib"
}

func (bs *buildState) compile(ctx context.Context, u *unitgraph.Unit) (compiler.Result, error) {
	if u.Mode == pkgid.ModeRunCustomBuild {
		return bs.runBuildScript(ctx, u)
	}

	binary := "rustc"
	args := compiler.BuildArgs(u, u.Target, []string{bs.outDir}, bs.externsFor(u), bs.outDir, []string{"link", "dep-info"})
	depInfoPath := filepath.Join(bs.outDir, rlibName(u.Target.Name)+".d")

	result, err := compiler.Invoke(ctx, binary, args, os.Environ(), filepath.Dir(u.Target.SrcPath), depInfoPath)
	if err != nil {
		return result, err
	}

	fp := fingerprint.Compute(bs.inputsFor(u))
	if saveErr := bs.fpStore.Save(bs.buildKey(u), fp, nil); saveErr != nil {
		bs.app.logger.Warn("fingerprint.save.failed", "unit", u.Package.Name, "error", saveErr)
	}
	bs.recordFingerprint(u, fp.Digest)
	return result, nil
}

func (bs *buildState) runBuildScript(ctx context.Context, u *unitgraph.Unit) (compiler.Result, error) {
	pkg, err := bs.provider.Package(u.Package)
	if err != nil {
		return compiler.Result{}, fmt.Errorf("resolve package for build script: %w", err)
	}

	manifestDir := pkg.RootDir
	outDir := filepath.Join(bs.outDir, "build-"+u.Package.Name)
	if mkErr := os.MkdirAll(outDir, 0o755); mkErr != nil {
		return compiler.Result{}, mkErr
	}

	binary := filepath.Join(bs.outDir, rlibName(u.Target.Name))
	env := compiler.BuildScriptEnv(pkg, u.Profile, u.Features,
		bs.hostTriple, u.Kind.String(), manifestDir, outDir, 1, nil, nil)

	directives, err := compiler.RunBuildScript(ctx, binary, manifestDir, env)
	if err != nil {
		return compiler.Result{}, err
	}
	for _, w := range directives.Warnings {
		bs.app.logger.Warn("buildscript.warning", "unit", u.Package.Name, "message", w)
	}
	return compiler.Result{}, nil
}

func (bs *buildState) onMessage(u *unitgraph.Unit, d compiler.Diagnostic) {
	if bs.app == nil {
		return
	}
	switch d.Level {
	case "error":
		ui.Errorf("%s: %s", u.Package.Name, d.Message)
	case "warning":
		ui.Warningf("%s: %s", u.Package.Name, d.Message)
	default:
		ui.Infof("%s: %s", u.Package.Name, d.Message)
	}
}
