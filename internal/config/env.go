package config

import (
	"fmt"
	"strconv"
)

// EnvPrefix namespaces the environment overrides understood by LoadWithEnv.
const EnvPrefix = "NEWSLETTER_"

type lookupFunc func(key string) (string, bool)

// applyEnv overwrites file values with NEWSLETTER_* variables. Secrets are
// expected to arrive this way rather than through the file.
func (f *fileSettings) applyEnv(lookup lookupFunc) error {
	if f.Database == nil {
		f.Database = &fileDatabase{}
	}
	db := f.Database

	strs := map[string]**string{
		"DATABASE_USERNAME":      &db.Username,
		"DATABASE_PASSWORD":      &db.Password,
		"DATABASE_HOST":          &db.Host,
		"DATABASE_DATABASE_NAME": &db.DatabaseName,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = &v
		}
	}

	ints := map[string]**int{
		"DATABASE_PORT":    &db.Port,
		"APPLICATION_PORT": &f.ApplicationPort,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: must be a number: %w", EnvPrefix, key, err)
		}
		*dst = &n
	}

	if v, ok := lookup(EnvPrefix + "DATABASE_REQUIRE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDATABASE_REQUIRE_SSL: %w", EnvPrefix, err)
		}
		db.RequireSSL = b
	}
	if v, ok := lookup(EnvPrefix + "EMAIL_PASSWORD"); ok {
		f.Email.Password = v
	}
	return nil
}
