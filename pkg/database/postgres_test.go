package database

import (
	"net/url"
	"testing"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "solar",
		Password: "p@ss word/:",
		Database: "predictions",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("DSN %q does not parse: %v", dsn, err)
	}
	if u.Scheme != "postgres" {
		t.Errorf("scheme = %q, want postgres", u.Scheme)
	}
	if u.Host != "db.internal:5433" {
		t.Errorf("host = %q, want db.internal:5433", u.Host)
	}
	if password, _ := u.User.Password(); password != "p@ss word/:" {
		t.Errorf("password = %q, want original password", password)
	}
	if u.Path != "/predictions" {
		t.Errorf("path = %q, want /predictions", u.Path)
	}
	if got := u.Query().Get("sslmode"); got != "require" {
		t.Errorf("sslmode = %q, want require", got)
	}
}
