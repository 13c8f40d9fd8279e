package bundler

import "github.com/evanw/esbuild/pkg/api"

// ESBuildMinifier minifies JavaScript with esbuild's transform API.
type ESBuildMinifier struct{}

// NewESBuildMinifier creates a minifier.
func NewESBuildMinifier() *ESBuildMinifier {
	return &ESBuildMinifier{}
}

// Minify implements Minifier.
func (m *ESBuildMinifier) Minify(src string, opts MinifyOptions) (string, error) {
	all := opts.All()

	result := api.Transform(src, api.TransformOptions{
		Loader:            api.LoaderJS,
		LogLevel:          api.LogLevelSilent,
		MinifyWhitespace:  all || opts.Whitespace,
		MinifyIdentifiers: all || opts.Identifiers,
		MinifySyntax:      all || opts.Syntax,
	})
	if len(result.Errors) > 0 {
		return "", messagesError(result.Errors)
	}

	return string(result.Code), nil
}
