package app

import (
	"github.com/flowcraft/plugin-sources/internal/app/storage"
	"github.com/flowcraft/plugin-sources/internal/loader"
	"github.com/flowcraft/plugin-sources/internal/service"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Storage provides the source read model
	Storage storage.Factory

	// Loader imports modules of sources
	Loader *loader.Loader

	// SourceService provides the API business logic
	SourceService service.SourceService
}
