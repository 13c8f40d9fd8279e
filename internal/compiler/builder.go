package compiler

import (
	"path/filepath"

	"github.com/Norgate-AV/bundlecache/internal/bundler"
)

// BuildJob constructs the bundler job for a request. A path becomes a single
// entry; a module list registers every module in order, honouring per-module
// options. Resolution options are copied in here; External, Ignore and
// Transform are registered by the pipeline.
func BuildJob(req Request, opts Options) *bundler.Job {
	job := bundler.NewJob(opts.Basedir)
	job.NoParse = opts.NoParse
	job.Extensions = opts.Extensions
	job.Resolve = opts.Resolve

	if req.IsList() {
		for _, m := range req.Modules {
			expose := ""
			if m.Options != nil {
				expose = m.Options.Expose
			}
			job.AddRequire(m.Name, expose)
		}

		return job
	}

	entry := req.Path
	if opts.Basedir != "" && !filepath.IsAbs(entry) {
		entry = filepath.Join(opts.Basedir, entry)
	}
	job.AddEntry(entry)

	return job
}
