package cost

// Rates holds query pricing configuration.
type Rates struct {
	BigQuery BigQueryRate `yaml:"bigquery" mapstructure:"bigquery"`
}

// BigQueryRate holds on-demand analysis pricing. Billed bytes round up to
// the next MiB with a per-query minimum, matching how BigQuery meters
// on-demand queries.
type BigQueryRate struct {
	USDPerTiB      float64 `yaml:"usd_per_tib" mapstructure:"usd_per_tib"`
	MinBilledBytes int64   `yaml:"min_billed_bytes" mapstructure:"min_billed_bytes"`
}

const (
	mib = int64(1) << 20
	tib = int64(1) << 40
)

// Calculator converts dry-run scan estimates into money.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// BigQueryScan returns the on-demand cost of a query that processes the
// given number of bytes. Zero bytes means the query is served from cache
// or metadata and costs nothing.
func (c *Calculator) BigQueryScan(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}

	billed := bytes
	if billed < c.rates.BigQuery.MinBilledBytes {
		billed = c.rates.BigQuery.MinBilledBytes
	}
	if rem := billed % mib; rem != 0 {
		billed += mib - rem
	}

	return float64(billed) / float64(tib) * c.rates.BigQuery.USDPerTiB
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		BigQuery: BigQueryRate{
			USDPerTiB:      6.25,
			MinBilledBytes: 10 * mib,
		},
	}
}
