package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// minSecretLen is the shortest HS256 secret accepted for local tokens.
const minSecretLen = 16

// Validate checks struct tags first, then the cross-field rules tags cannot express.
func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *AppConfig) error {
	switch cfg.Storage.Backend {
	case "local":
		if cfg.Storage.UploadRoot == "" {
			return fmt.Errorf("storage: UPLOAD_ROOT is required for the local backend")
		}
	case "minio":
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return fmt.Errorf("storage: minio backend requires endpoint, credentials and bucket")
		}
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database: DB_SQLITE_PATH is required for the sqlite driver")
	}

	if len(cfg.Auth.JWTSecret) < minSecretLen {
		return fmt.Errorf("auth: JWT_SECRET_KEY must be at least %d bytes", minSecretLen)
	}

	a := cfg.Auth
	providerSet := a.ProviderIssuer != "" || a.ProviderAudience != "" || a.ProviderCertsURL != "" || len(a.ProviderKeys) > 0
	if providerSet {
		if a.ProviderIssuer == "" || a.ProviderAudience == "" {
			return fmt.Errorf("auth: identity provider requires IDP_ISSUER and IDP_AUDIENCE")
		}
		if a.ProviderCertsURL == "" && len(a.ProviderKeys) == 0 {
			return fmt.Errorf("auth: identity provider requires IDP_CERTS_URL or IDP_PUBLIC_KEY_<kid>")
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
