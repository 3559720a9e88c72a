package rules

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load("testdata/rules.yaml", "testdata/agents.yaml")
	require.NoError(t, err)
	return s
}

func TestLoad(t *testing.T) {
	s := loadTestStore(t)

	assert.Equal(t, []string{"french", "spanish"}, s.Languages())
	assert.Equal(t, []string{"A1", "B1"}, s.Levels("Spanish"))
	assert.Nil(t, s.Levels("klingon"))

	p := s.Policy()
	assert.Equal(t, 150, p.ShortTextTarget)
	assert.Equal(t, 200, p.ShortTextThreshold, "threshold defaults to 200")
	assert.Equal(t, 30.0, p.LongTextReductionPercent)
	assert.Equal(t, 2, s.MaxRevisionCycles())
}

func TestLoad_Errors(t *testing.T) {
	tmp := t.TempDir()
	noLangs := filepath.Join(tmp, "empty.yaml")
	require.NoError(t, os.WriteFile(noLangs, []byte("universal_principles: {}\n"), 0644))
	badPolicy := filepath.Join(tmp, "bad-policy.yaml")
	require.NoError(t, os.WriteFile(badPolicy, []byte("requirements:\n  word_count:\n    short_texts:\n      target: 0\n"), 0644))

	tests := []struct {
		name       string
		rulesPath  string
		policyPath string
		wantPath   string
	}{
		{"missing rules", filepath.Join(tmp, "nope.yaml"), "testdata/agents.yaml", filepath.Join(tmp, "nope.yaml")},
		{"missing policy", "testdata/rules.yaml", filepath.Join(tmp, "nope.yaml"), filepath.Join(tmp, "nope.yaml")},
		{"malformed rules", "testdata/malformed.yaml", "testdata/agents.yaml", "testdata/malformed.yaml"},
		{"malformed policy", "testdata/rules.yaml", "testdata/malformed.yaml", "testdata/malformed.yaml"},
		{"no languages", noLangs, "testdata/agents.yaml", noLangs},
		{"invalid policy", "testdata/rules.yaml", badPolicy, badPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(tt.rulesPath, tt.policyPath)
			require.Error(t, err)
			assert.Nil(t, s)

			var loadErr *ConfigLoadError
			require.True(t, errors.As(err, &loadErr), "expected *ConfigLoadError, got %T", err)
			assert.Equal(t, tt.wantPath, loadErr.Path)
		})
	}
}

func TestLoad_ZeroRevisionCyclesUsesDefault(t *testing.T) {
	s, err := Load("testdata/rules.yaml", "testdata/no_cycles.yaml")
	require.NoError(t, err)
	assert.Equal(t, defaultMaxRevisionCycles, s.MaxRevisionCycles())
	assert.Equal(t, 100, s.Policy().ShortTextThreshold)
}

func TestLookup_Found(t *testing.T) {
	s := loadTestStore(t)

	for _, lang := range s.Languages() {
		for _, level := range s.Levels(lang) {
			lr, err := s.Lookup(lang, level)
			require.NoError(t, err, "%s/%s", lang, level)
			assert.NotEmpty(t, lr.AllowedGrammar, "%s/%s", lang, level)
		}
	}

	lr, err := s.Lookup("SPANISH", "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"subjuntivo"}, lr.AvoidGrammar)
}

func TestLookup_NotFound(t *testing.T) {
	s := loadTestStore(t)

	t.Run("unknown language", func(t *testing.T) {
		_, err := s.Lookup("Klingon", "A1")
		var nf *RuleNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "klingon", nf.Language)
		assert.Equal(t, "Klingon", nf.Requested)
		assert.Equal(t, "A1", nf.Level)
		assert.Contains(t, err.Error(), `"Klingon" (looked up as "klingon")`)
		assert.Equal(t, []string{"french", "spanish"}, nf.AvailableLanguages)
		assert.Empty(t, nf.AvailableLevels)
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := s.Lookup("french", "C1")
		var nf *RuleNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "french", nf.Language)
		assert.Equal(t, "french", nf.Requested)
		assert.Equal(t, "C1", nf.Level)
		assert.Contains(t, err.Error(), `no rules found for "french" at level "C1"`)
		assert.Equal(t, []string{"A1"}, nf.AvailableLevels)
		assert.Contains(t, err.Error(), `available levels for "french": A1`)
	})
}

func TestUniversal(t *testing.T) {
	s := loadTestStore(t)

	u, err := s.Universal("b1")
	require.NoError(t, err)
	assert.Equal(t, "Top 3000", u.FrequencyBand)
	assert.Equal(t, 2, u.MaxClauses)

	_, err = s.Universal("C1")
	var nf *RuleNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestTargetWordCount(t *testing.T) {
	s := loadTestStore(t)

	tests := []struct {
		original int
		want     int
	}{
		{150, 150},
		{10, 150},
		{199, 150},
		{200, 140},
		{1000, 700},
		{333, 233},
	}
	for _, tt := range tests {
		if got := s.TargetWordCount(tt.original); got != tt.want {
			t.Errorf("TargetWordCount(%d) = %d, want %d", tt.original, got, tt.want)
		}
	}
}

func TestMapLevel(t *testing.T) {
	tests := []struct {
		label   string
		want    string
		wantErr bool
	}{
		{"Beginner", "A1", false},
		{"Intermediate", "B1", false},
		{"Advanced", "C1", false},
		{"beginner", "A1", false},
		{" Advanced ", "C1", false},
		{"B1", "B1", false},
		{"c1", "C1", false},
		{"Expert", "", true},
		{"A2", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := MapLevel(tt.label)
			if tt.wantErr {
				var ule *UnknownLevelError
				require.True(t, errors.As(err, &ule))
				assert.Equal(t, tt.label, ule.Level)
				assert.Equal(t, []string{"Beginner", "Intermediate", "Advanced"}, ule.Supported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_ConcurrentReads(t *testing.T) {
	s := loadTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Lookup("spanish", "A1")
				_, _ = s.Universal("A1")
				_ = s.TargetWordCount(j * 10)
			}
		}()
	}
	wg.Wait()
}

func TestShippedConfig(t *testing.T) {
	s, err := Load("../../config/linguistic-adaptation-rules.yaml", "../../config/agents.yaml")
	require.NoError(t, err)

	for _, lang := range s.Languages() {
		for _, label := range SupportedLevels() {
			cefr, err := MapLevel(label)
			require.NoError(t, err)
			_, err = s.Lookup(lang, cefr)
			assert.NoError(t, err, "%s/%s", lang, cefr)
			_, err = s.Universal(cefr)
			assert.NoError(t, err, "universal %s", cefr)
		}
	}
}
