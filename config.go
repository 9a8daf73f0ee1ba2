package disburse

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BudgetConfig holds the per-step gas reservations. The defaults were
// measured against real transactions; re-measure after changing the
// pipeline.
type BudgetConfig struct {
	// TxFee is the fixed overhead of the whole transaction.
	TxFee Gas `yaml:"tx_fee"`
	// Lookup is attached to the directory call.
	Lookup Gas `yaml:"lookup"`
	// Dispatch pays for the step that validates, splits and fans out.
	Dispatch Gas `yaml:"dispatch"`
	// Refund is attached to the refund_unpaid continuation.
	Refund Gas `yaml:"refund"`
	// Report is attached to the report_payment continuation.
	Report Gas `yaml:"report"`
	// Transfer is charged once per recipient.
	Transfer Gas `yaml:"transfer"`
}

// DefaultBudgetConfig returns the calibrated reservations.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		TxFee:    2 * TGas,
		Lookup:   10 * TGas,
		Dispatch: 9 * TGas,
		Refund:   3 * TGas,
		Report:   3 * TGas,
		Transfer: 0,
	}
}

// Env var names read by ApplyEnv.
const (
	EnvTxFeeGas    = "DISBURSE_TX_FEE_GAS"
	EnvLookupGas   = "DISBURSE_LOOKUP_GAS"
	EnvDispatchGas = "DISBURSE_DISPATCH_GAS"
	EnvRefundGas   = "DISBURSE_REFUND_GAS"
	EnvReportGas   = "DISBURSE_REPORT_GAS"
	EnvTransferGas = "DISBURSE_TRANSFER_GAS"
)

// LoadBudgetConfig reads a YAML file on top of the defaults. Keys missing
// from the file keep their default value.
func LoadBudgetConfig(path string) (BudgetConfig, error) {
	cfg := DefaultBudgetConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read budget config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse budget config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *BudgetConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	fields := []struct {
		name string
		dst  *Gas
	}{
		{EnvTxFeeGas, &c.TxFee},
		{EnvLookupGas, &c.Lookup},
		{EnvDispatchGas, &c.Dispatch},
		{EnvRefundGas, &c.Refund},
		{EnvReportGas, &c.Report},
		{EnvTransferGas, &c.Transfer},
	}
	for _, f := range fields {
		raw, ok := lookup(f.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		g, err := ParseGas(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = g
	}
	return nil
}

// ParseGas accepts a raw integer or a value with a Tgas, Ggas or gas suffix
// (case-insensitive), e.g. "9Tgas" or "500 Ggas".
func ParseGas(s string) (Gas, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	unit := Gas(1)
	switch {
	case strings.HasSuffix(raw, "tgas"):
		unit, raw = TGas, strings.TrimSuffix(raw, "tgas")
	case strings.HasSuffix(raw, "ggas"):
		unit, raw = GGas, strings.TrimSuffix(raw, "ggas")
	case strings.HasSuffix(raw, "gas"):
		raw = strings.TrimSuffix(raw, "gas")
	}
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gas value %q", s)
	}
	if n != 0 && uint64(unit) > ^uint64(0)/n {
		return 0, fmt.Errorf("gas value %q overflows", s)
	}
	return Gas(n) * unit, nil
}

// UnmarshalYAML implements yaml.Unmarshaler so configs can use unit suffixes.
func (g *Gas) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseGas(value.Value)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (g Gas) MarshalYAML() (interface{}, error) {
	return g.String(), nil
}
