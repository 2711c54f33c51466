package modules

import (
	"io/fs"
	"net/http"
	"os"

	"github.com/FACorreiaa/go-portal-shell/internal/router"
)

// Options selects where module code comes from.
type Options struct {
	// RemoteBaseURL, when set, serves every template module from a bundle server.
	RemoteBaseURL string
	// ContentDir overrides the bundled markdown articles of the contents module.
	ContentDir string
	Client     *http.Client
}

// LoaderFor returns the loader of module key under opts.
func LoaderFor(key string, opts Options) router.Loader {
	if key == router.ModuleContents {
		var content fs.FS = Content()
		if opts.ContentDir != "" {
			content = os.DirFS(opts.ContentDir)
		}
		return MarkdownLoader{FS: content, Module: key}
	}
	if opts.RemoteBaseURL != "" {
		return RemoteLoader{Client: opts.Client, BaseURL: opts.RemoteBaseURL, Module: key}
	}
	return TemplateLoader{FS: Templates(), Module: key}
}

// Register binds a loader to every module key. Nothing is loaded here.
func Register(reg *router.Registry, keys []string, opts Options) error {
	for _, key := range keys {
		if err := reg.Register(key, LoaderFor(key, opts)); err != nil {
			return err
		}
	}
	return nil
}
