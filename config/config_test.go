package config

import "testing"

func TestParseConfig(t *testing.T) {
	raw := []byte(`{
		"fact-dir": "facts",
		"output-dir": "-",
		"incremental": true,
		"provenance": "subtreeHeights",
		"profile": "prof.log"
	}`)

	conf, err := ParseConfig(raw)
	if err != nil {
		t.Fatal(err)
	}

	if exp, act := "facts", conf.FactDir; exp != act {
		t.Errorf("expected fact dir %q, got %q", exp, act)
	}
	if !conf.Incremental {
		t.Errorf("expected incremental mode on")
	}
	if !conf.HasProvenance() {
		t.Errorf("expected provenance on")
	}
	if !conf.HasProfile() {
		t.Errorf("expected profiling on")
	}
	if conf.HasEngine() {
		t.Errorf("expected no engine")
	}
}

func TestParseConfigRejectsBadProvenance(t *testing.T) {
	if _, err := ParseConfig([]byte(`{"provenance": "sometimes"}`)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestInterpreted(t *testing.T) {
	tests := []struct {
		note string
		conf Config
		exp  bool
	}{
		{"default", Config{}, true},
		{"compiled", Config{Compile: true}, false},
		{"dl program", Config{DLProgram: "out.dl"}, false},
		{"generated", Config{Generate: "out.cpp"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if act := tc.conf.Interpreted(); tc.exp != act {
				t.Errorf("expected %v, got %v", tc.exp, act)
			}
		})
	}
}
