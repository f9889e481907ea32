package config

import (
	"testing"
	"time"
)

func TestGet(t *testing.T) {
	t.Setenv("AEGIS_TEST_STR", "value")
	if got := Get("AEGIS_TEST_STR", "def"); got != "value" {
		t.Errorf("Get = %q", got)
	}
	if got := Get("AEGIS_TEST_MISSING", "def"); got != "def" {
		t.Errorf("Get default = %q", got)
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("AEGIS_TEST_INT", "42")
	if got := GetInt("AEGIS_TEST_INT", 1); got != 42 {
		t.Errorf("GetInt = %d", got)
	}
	t.Setenv("AEGIS_TEST_INT", "junk")
	if got := GetInt("AEGIS_TEST_INT", 1); got != 1 {
		t.Errorf("GetInt on junk = %d", got)
	}
}

func TestGetBool(t *testing.T) {
	for _, v := range []string{"true", "1", "yes"} {
		t.Setenv("AEGIS_TEST_BOOL", v)
		if !GetBool("AEGIS_TEST_BOOL") {
			t.Errorf("GetBool(%q) = false", v)
		}
	}
	t.Setenv("AEGIS_TEST_BOOL", "false")
	if GetBool("AEGIS_TEST_BOOL") {
		t.Error("GetBool(false) = true")
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("AEGIS_TEST_DUR", "90s")
	if got := GetDuration("AEGIS_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("GetDuration = %v", got)
	}
	if got := GetDuration("AEGIS_TEST_DUR_MISSING", time.Minute); got != time.Minute {
		t.Errorf("GetDuration default = %v", got)
	}
}
