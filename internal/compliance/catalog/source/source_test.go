package source_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/compliance/catalog"
	"docbridge/internal/compliance/catalog/source"
	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
	"docbridge/pkg/platform/circuit"
	"docbridge/pkg/platform/sentinel"
	"docbridge/pkg/testutil"
)

const recordsJSON = `[
  {"target_country": "us", "accepted_document_types": ["degree"], "apostille_required": true, "validity_period_months": 12},
  {"target_country": "GB", "accepted_document_types": ["degree"], "additional_requirements": ["NYSC certificate"]}
]`

const recordsYAML = `
- target_country: PT
  accepted_document_types: [degree, birth_certificate]
  translation_required: true
  processing_time_estimate_days: 30
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "a JSON requirements file", func(t *testing.T) {
		src := source.NewFileSource(writeFile(t, "requirements.json", recordsJSON))

		testutil.Then(t, "records decode with optional fields", func(t *testing.T) {
			records, err := src.Fetch(ctx)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "us", records[0].TargetCountry)
			require.NotNil(t, records[0].ValidityPeriodMonths)
			assert.Equal(t, 12, *records[0].ValidityPeriodMonths)
			assert.Nil(t, records[1].ValidityPeriodMonths)
		})
	})

	testutil.Given(t, "a YAML requirements file", func(t *testing.T) {
		src := source.NewFileSource(writeFile(t, "requirements.yml", recordsYAML))

		testutil.Then(t, "the extension selects the YAML decoder", func(t *testing.T) {
			records, err := src.Fetch(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.True(t, records[0].TranslationRequired)
			assert.Equal(t, 30, *records[0].ProcessingTimeEstimateDays)
		})
	})

	testutil.Given(t, "a malformed file", func(t *testing.T) {
		src := source.NewFileSource(writeFile(t, "requirements.json", `{"not": "an array"}`))

		testutil.Then(t, "fetch fails with a configuration error", func(t *testing.T) {
			_, err := src.Fetch(ctx)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
		})
	})

	testutil.Given(t, "a missing file", func(t *testing.T) {
		src := source.NewFileSource(filepath.Join(t.TempDir(), "absent.json"))

		testutil.Then(t, "fetch fails with a configuration error", func(t *testing.T) {
			_, err := src.Fetch(ctx)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
		})
	})
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, source.FormatYAML, source.FormatFor("catalog/requirements.YAML"))
	assert.Equal(t, source.FormatYAML, source.FormatFor("x.yml"))
	assert.Equal(t, source.FormatJSON, source.FormatFor("x.json"))
	assert.Equal(t, source.FormatJSON, source.FormatFor("requirements"))
}

type fakeS3 struct {
	body string
	err  error
	got  *s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Source(t *testing.T) {
	ctx := context.Background()

	t.Run("reads the configured object", func(t *testing.T) {
		client := &fakeS3{body: recordsYAML}
		src := source.NewS3SourceWithClient(client, "catalogs", "prod/requirements.yaml")

		records, err := src.Fetch(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, "catalogs", *client.got.Bucket)
		assert.Equal(t, "prod/requirements.yaml", *client.got.Key)
		assert.Equal(t, "s3://catalogs/prod/requirements.yaml", src.Name())
	})

	t.Run("missing object maps to not found", func(t *testing.T) {
		src := source.NewS3SourceWithClient(&fakeS3{err: &types.NoSuchKey{}}, "catalogs", "absent.json")

		_, err := src.Fetch(ctx)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

type stubSource struct {
	name    string
	records []models.JurisdictionRequirement
	err     error
	calls   int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]models.JurisdictionRequirement, error) {
	s.calls++
	return s.records, s.err
}

func TestFallbackSource(t *testing.T) {
	ctx := context.Background()
	primaryRecords := []models.JurisdictionRequirement{{TargetCountry: "US"}}
	fallbackRecords := []models.JurisdictionRequirement{{TargetCountry: "GB"}}
	always := func() bool { return true }
	never := func() bool { return false }

	t.Run("healthy primary is used", func(t *testing.T) {
		primary := &stubSource{name: "pg", records: primaryRecords}
		fallback := &stubSource{name: "file", records: fallbackRecords}
		src := source.NewFallbackSource(primary, fallback, nil, always, nil)

		records, err := src.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, primaryRecords, records)
		assert.Zero(t, fallback.calls)
		assert.False(t, src.Degraded())
		assert.Equal(t, "pg|file", src.Name())
	})

	t.Run("failing primary falls back while permitted and opens the circuit", func(t *testing.T) {
		primary := &stubSource{name: "pg", err: errors.New("connection refused")}
		fallback := &stubSource{name: "file", records: fallbackRecords}
		breaker := circuit.New("pg", circuit.WithFailureThreshold(2))
		src := source.NewFallbackSource(primary, fallback, breaker, always, nil)

		for i := 0; i < 2; i++ {
			records, err := src.Fetch(ctx)
			require.NoError(t, err)
			assert.Equal(t, fallbackRecords, records)
		}
		assert.True(t, src.Degraded())
		assert.True(t, breaker.IsOpen())

		_, err := src.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, primary.calls, "open circuit skips the primary during cooldown")
	})

	t.Run("failing primary returns its error once fallback is not needed", func(t *testing.T) {
		primary := &stubSource{name: "pg", err: errors.New("connection reset")}
		fallback := &stubSource{name: "file", records: fallbackRecords}
		breaker := circuit.New("pg", circuit.WithFailureThreshold(1))
		src := source.NewFallbackSource(primary, fallback, breaker, never, nil)

		_, err := src.Fetch(ctx)
		assert.ErrorContains(t, err, "connection reset")

		_, err = src.Fetch(ctx)
		assert.ErrorIs(t, err, source.ErrCircuitOpen)
		assert.Zero(t, fallback.calls)
		assert.False(t, src.Degraded())
	})

	t.Run("recovered primary is served on its first success", func(t *testing.T) {
		now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		primary := &stubSource{name: "pg", err: errors.New("down")}
		fallback := &stubSource{name: "file", records: fallbackRecords}
		breaker := circuit.New("pg",
			circuit.WithFailureThreshold(1),
			circuit.WithCooldown(time.Minute),
			circuit.WithClock(func() time.Time { return now }),
		)
		src := source.NewFallbackSource(primary, fallback, breaker, always, nil)

		_, err := src.Fetch(ctx)
		require.NoError(t, err)
		require.True(t, src.Degraded())

		primary.err = nil
		primary.records = primaryRecords
		now = now.Add(time.Minute)

		records, err := src.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, primaryRecords, records)
		assert.False(t, src.Degraded())
	})

	t.Run("fallback errors propagate", func(t *testing.T) {
		primary := &stubSource{name: "pg", err: errors.New("down")}
		fallback := &stubSource{name: "file", err: errors.New("missing")}
		src := source.NewFallbackSource(primary, fallback, nil, nil, nil)

		_, err := src.Fetch(ctx)
		assert.EqualError(t, err, "missing")
	})

	t.Run("invalidate reaches a caching primary", func(t *testing.T) {
		primary := &invalidatingSource{stubSource: stubSource{name: "cache", records: primaryRecords}}
		src := source.NewFallbackSource(primary, &stubSource{name: "seed"}, nil, always, nil)

		require.NoError(t, src.Invalidate(ctx))
		assert.Equal(t, 1, primary.invalidations)
		assert.NoError(t, source.NewFallbackSource(&stubSource{name: "pg"}, &stubSource{name: "seed"}, nil, always, nil).Invalidate(ctx))
	})
}

type invalidatingSource struct {
	stubSource
	invalidations int
}

func (s *invalidatingSource) Invalidate(context.Context) error {
	s.invalidations++
	return nil
}

func TestSeedLoadsIntoCatalog(t *testing.T) {
	records, err := source.SeedSource().Fetch(context.Background())
	require.NoError(t, err)

	c := catalog.New()
	require.NoError(t, c.Replace(records))
	us, ok := c.Get("us")
	require.True(t, ok)
	assert.Equal(t, models.SeverityCritical, us.EffectiveApostilleSeverity())
	assert.Contains(t, c.CountryCodes(), "GB")
}

func TestEncodeDecodeCacheFormat(t *testing.T) {
	data, err := source.Encode(source.Seed())
	require.NoError(t, err)
	records, err := source.Decode(data, source.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, source.Seed(), records)
}
