package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	pluginName      = "bundlecache"
	ignoreNamespace = "bundlecache-ignore"
	requiresFile    = "bundlecache-requires.js"
)

// defaultExtensions is esbuild's own resolve list. Setting ResolveExtensions
// replaces it, so job extensions are appended to it instead.
var defaultExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".css", ".json"}

// resolveMarker tags nested resolve calls so the plugin does not recurse
// into itself.
type resolveMarker struct{}

// ESBuild bundles jobs with esbuild. Files are served from the warm DepCache
// when present; everything read from disk is reported through Job.EmitDep.
type ESBuild struct {
	mu         sync.RWMutex
	transforms map[string]api.Plugin
	logger     *slog.Logger
}

// ESBuildOption configures an ESBuild bundler.
type ESBuildOption func(*ESBuild)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) ESBuildOption {
	return func(e *ESBuild) {
		e.logger = logger
	}
}

// NewESBuild creates an esbuild-backed bundler.
func NewESBuild(opts ...ESBuildOption) *ESBuild {
	e := &ESBuild{
		transforms: make(map[string]api.Plugin),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

func (e *ESBuild) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// RegisterTransform makes plugin available to jobs under name.
func (e *ESBuild) RegisterTransform(name string, plugin api.Plugin) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.transforms[name] = plugin
}

// Bundle implements Bundler.
func (e *ESBuild) Bundle(ctx context.Context, job *Job, flags Flags, cache DepCache) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	workDir := job.Basedir
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = cwd
	}

	plugins, err := e.plugins(job, flags, cache)
	if err != nil {
		return "", err
	}

	if len(job.NoParse) > 0 {
		e.log().Debug("noParse is not supported by esbuild, files are parsed", "files", job.NoParse)
	}

	opts := api.BuildOptions{
		Bundle:        true,
		Write:         false,
		AbsWorkingDir: workDir,
		Platform:      api.PlatformBrowser,
		Format:        api.FormatIIFE,
		LogLevel:      api.LogLevelSilent,
		External:   job.External,
		GlobalName: flags.Standalone,
		Plugins:    plugins,
	}

	if len(job.Extensions) > 0 {
		opts.ResolveExtensions = resolveExtensions(job.Extensions)
	}

	if flags.Debug {
		opts.Sourcemap = api.SourceMapInline
		opts.SourcesContent = api.SourcesContentInclude
	}

	if flags.InsertGlobals || flags.DetectGlobals {
		opts.Define = map[string]string{"global": "globalThis"}
	}

	switch {
	case len(job.Requires) > 0:
		stub, err := requireStub(job.Requires)
		if err != nil {
			return "", err
		}
		opts.Stdin = &api.StdinOptions{
			Contents:   stub,
			ResolveDir: workDir,
			Sourcefile: requiresFile,
			Loader:     api.LoaderJS,
		}
	case len(job.Entries) > 0:
		opts.EntryPoints = job.Entries
	default:
		return "", errors.New("job has no entries")
	}

	result := api.Build(opts)
	if len(result.Errors) > 0 {
		return "", messagesError(result.Errors)
	}

	if len(result.OutputFiles) == 0 {
		return "", errors.New("esbuild produced no output")
	}

	return string(result.OutputFiles[0].Contents), nil
}

// plugins returns the registered transforms for the job followed by the
// caching plugin.
func (e *ESBuild) plugins(job *Job, flags Flags, cache DepCache) ([]api.Plugin, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	plugins := make([]api.Plugin, 0, len(job.Transform)+1)
	for _, name := range job.Transform {
		plugin, ok := e.transforms[name]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", name)
		}
		plugins = append(plugins, plugin)
	}

	return append(plugins, cachePlugin(job, flags, cache)), nil
}

func cachePlugin(job *Job, flags Flags, cache DepCache) api.Plugin {
	ignored := make(map[string]bool, len(job.Ignore))
	for _, name := range job.Ignore {
		ignored[name] = true
	}

	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if _, nested := args.PluginData.(resolveMarker); nested {
					return api.OnResolveResult{}, nil
				}

				if ignored[args.Path] {
					return api.OnResolveResult{Path: args.Path, Namespace: ignoreNamespace}, nil
				}

				if job.Resolve != nil && args.Kind != api.ResolveEntryPoint {
					path, err := job.Resolve(args.Path, args.Importer)
					if err != nil {
						return api.OnResolveResult{}, err
					}
					if path != "" {
						return api.OnResolveResult{Path: path}, nil
					}
				}

				if !flags.IgnoreMissing {
					return api.OnResolveResult{}, nil
				}

				res := build.Resolve(args.Path, api.ResolveOptions{
					Importer:   args.Importer,
					ResolveDir: args.ResolveDir,
					Kind:       args.Kind,
					PluginData: resolveMarker{},
				})
				if len(res.Errors) > 0 {
					return api.OnResolveResult{Path: args.Path, Namespace: ignoreNamespace}, nil
				}

				sideEffects := api.SideEffectsTrue
				if !res.SideEffects {
					sideEffects = api.SideEffectsFalse
				}

				return api.OnResolveResult{
					Path:        res.Path,
					External:    res.External,
					Namespace:   res.Namespace,
					SideEffects: sideEffects,
					Suffix:      res.Suffix,
				}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: ignoreNamespace}, func(api.OnLoadArgs) (api.OnLoadResult, error) {
				empty := "module.exports = {};"
				return api.OnLoadResult{Contents: &empty, Loader: api.LoaderJS}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				if dep, ok := cache[args.Path]; ok {
					if loader, known := loaders[dep.Loader]; known {
						contents := dep.Source
						return api.OnLoadResult{
							Contents:   &contents,
							Loader:     loader,
							ResolveDir: filepath.Dir(args.Path),
						}, nil
					}
				}

				name := loaderName(args.Path)
				loader, known := loaders[name]
				if !known {
					return api.OnLoadResult{}, nil
				}

				data, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}

				dep := Dep{ID: args.Path, Source: string(data), Loader: name}
				job.EmitDep(dep)

				contents := dep.Source
				return api.OnLoadResult{
					Contents:   &contents,
					Loader:     loader,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}
}

var loaders = map[string]api.Loader{
	"js":   api.LoaderJS,
	"jsx":  api.LoaderJSX,
	"ts":   api.LoaderTS,
	"tsx":  api.LoaderTSX,
	"json": api.LoaderJSON,
	"css":  api.LoaderCSS,
	"text": api.LoaderText,
}

func loaderName(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return "js"
	case ".jsx":
		return "jsx"
	case ".ts", ".mts", ".cts":
		return "ts"
	case ".tsx":
		return "tsx"
	case ".json":
		return "json"
	case ".css":
		return "css"
	case ".txt":
		return "text"
	default:
		return ""
	}
}

// resolveExtensions appends extra to esbuild's default list, skipping
// duplicates and adding a missing leading dot.
func resolveExtensions(extra []string) []string {
	out := append([]string(nil), defaultExtensions...)
	seen := make(map[string]bool, len(out)+len(extra))
	for _, ext := range out {
		seen[ext] = true
	}

	for _, ext := range extra {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}

	return out
}

// requireStub generates an entry that requires every module and exposes it
// on a global require function, chaining to any require already defined.
func requireStub(requires []Require) (string, error) {
	var b strings.Builder
	b.WriteString("var __bundlecache_modules = {};\n")

	for _, r := range requires {
		expose := r.Expose
		if expose == "" {
			expose = r.Name
		}

		name, err := json.Marshal(r.Name)
		if err != nil {
			return "", fmt.Errorf("invalid module name %q: %w", r.Name, err)
		}
		key, err := json.Marshal(expose)
		if err != nil {
			return "", fmt.Errorf("invalid expose name %q: %w", expose, err)
		}

		fmt.Fprintf(&b, "__bundlecache_modules[%s] = require(%s);\n", key, name)
	}

	b.WriteString(`(function (prev) {
  globalThis.require = function (name) {
    if (Object.prototype.hasOwnProperty.call(__bundlecache_modules, name)) return __bundlecache_modules[name];
    if (typeof prev === "function") return prev(name);
    throw new Error("Cannot find module '" + name + "'");
  };
})(globalThis.require);
`)

	return b.String(), nil
}

func messagesError(msgs []api.Message) error {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		lines = append(lines, msg.Text)
	}

	return errors.New(strings.Join(lines, "\n"))
}
