package step

import (
	"github.com/kbukum/filepipe/errors"
)

// Step type names recognised in pipeline payloads.
const (
	TypePreviewZip           = "preview_zip"
	TypePreviewPicture       = "preview_picture"
	TypeExtractFileZip       = "extract_file_zip"
	TypeExtractDirectoryZip  = "extract_directory_zip"
	TypeCreateZip            = "create_zip"
	TypeDecryptCrypt4GH      = "decrypt_crypt4gh"
	TypeAddRecipientCrypt4GH = "add_recipient_crypt4gh"
	TypeValidateCrypt4GH     = "validate_crypt4gh"
)

// Factory builds a fresh step instance for one pipeline run.
type Factory func(deps *Deps) Step

// Registry maps step type names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with every built-in step registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TypePreviewZip, func(deps *Deps) Step { return &PreviewZip{deps: deps} })
	r.Register(TypePreviewPicture, func(deps *Deps) Step { return &PreviewPicture{deps: deps} })
	r.Register(TypeExtractFileZip, func(deps *Deps) Step { return &ExtractFileZip{deps: deps} })
	r.Register(TypeExtractDirectoryZip, func(deps *Deps) Step { return &ExtractDirectoryZip{deps: deps} })
	r.Register(TypeCreateZip, func(deps *Deps) Step { return &CreateZip{deps: deps} })
	r.Register(TypeDecryptCrypt4GH, func(deps *Deps) Step { return &DecryptCrypt4GH{deps: deps} })
	r.Register(TypeAddRecipientCrypt4GH, func(deps *Deps) Step { return &AddRecipientCrypt4GH{deps: deps} })
	r.Register(TypeValidateCrypt4GH, func(deps *Deps) Step { return &ValidateCrypt4GH{deps: deps} })
	return r
}

// Register adds or replaces a factory under name.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// New instantiates the step registered under name.
func (r *Registry) New(name string, deps *Deps) (Step, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.UnknownStep(name)
	}
	return factory(deps), nil
}

// Names returns the registered step type names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
