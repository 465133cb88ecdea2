package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/nodeproxy/nodeproxy/internal/assets/appidentity"
)

// Fallbacks used when no identity can be resolved at all.
const (
	DefaultBinaryName = "nodeproxy"
	DefaultEnvPrefix  = "NODEPROXY_"
)

func init() {
	// An explicit FULMEN_APP_IDENTITY_PATH or a .fulmen/app.yaml on disk
	// still wins; the embedded copy only covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity env prefix, or DefaultEnvPrefix.
func EnvPrefix(ctx context.Context) string {
	identity, err := Get(ctx)
	if err != nil || identity == nil || identity.EnvPrefix == "" {
		return DefaultEnvPrefix
	}
	return identity.EnvPrefix
}
