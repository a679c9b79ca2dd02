package flags

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Config holds the closed code lists and thresholds of the flag rules
type Config struct {
	SeniorApprovalCodes  []string `mapstructure:"senior_approval_codes" json:"senior_approval_codes"`
	RestructuringSchemes []string `mapstructure:"restructuring_schemes" json:"restructuring_schemes"`
	PledgedMarker        string   `mapstructure:"pledged_marker" json:"pledged_marker"`
	RealEstateAssetType  string   `mapstructure:"real_estate_asset_type" json:"real_estate_asset_type"`

	RealEstateLabels []string `mapstructure:"real_estate_labels" json:"real_estate_labels"`
	MachineryLabels  []string `mapstructure:"machinery_labels" json:"machinery_labels"`
	VehicleLabels    []string `mapstructure:"vehicle_labels" json:"vehicle_labels"`

	ValuationBaseDays      int `mapstructure:"valuation_base_days" json:"valuation_base_days"`
	ValuationToleranceDays int `mapstructure:"valuation_tolerance_days" json:"valuation_tolerance_days"`
	MonthDivisorDays       int `mapstructure:"month_divisor_days" json:"month_divisor_days"`
	RealEstateMonths       int `mapstructure:"real_estate_months" json:"real_estate_months"`
	MachineryVehicleMonths int `mapstructure:"machinery_vehicle_months" json:"machinery_vehicle_months"`

	DelayWindowStartYear int `mapstructure:"delay_window_start_year" json:"delay_window_start_year"`
	DelayWindowEndYear   int `mapstructure:"delay_window_end_year" json:"delay_window_end_year"`

	TopN               int    `mapstructure:"top_n" json:"top_n"`
	IndividualCustomer string `mapstructure:"individual_customer" json:"individual_customer"`
	CorporateCustomer  string `mapstructure:"corporate_customer" json:"corporate_customer"`
}

// DefaultConfig returns the rule parameters of the audit programme
func DefaultConfig() Config {
	var senior []string
	for i := 1; i <= 7; i++ {
		senior = append(senior, fmt.Sprintf("%02d", i))
	}
	for i := 28; i <= 31; i++ {
		senior = append(senior, fmt.Sprintf("%02d", i))
	}

	return Config{
		SeniorApprovalCodes: senior,
		RestructuringSchemes: []string{
			"ACOV1", "ACOV3", "ATT01", "ATT02", "ATT03", "ATT04",
			"BCOV1", "BCOV2", "BTT01", "BTT02", "BTT03",
			"CCOV2", "CCOV3", "CTT03", "RCOV3", "RTT03",
		},
		PledgedMarker:       "TCTD",
		RealEstateAssetType: "Bat dong san",

		RealEstateLabels: []string{"BĐS"},
		MachineryLabels:  []string{"MMTB"},
		VehicleLabels:    []string{"PTVT"},

		ValuationBaseDays:      365,
		ValuationToleranceDays: 30,
		MonthDivisorDays:       31,
		RealEstateMonths:       18,
		MachineryVehicleMonths: 12,

		DelayWindowStartYear: 2023,
		DelayWindowEndYear:   2025,

		TopN:               10,
		IndividualCustomer: "Ca nhan",
		CorporateCustomer:  "Doanh nghiep",
	}
}

// Validate reports every invalid parameter
func (c Config) Validate() error {
	var err error
	if len(c.SeniorApprovalCodes) == 0 {
		err = multierr.Append(err, fmt.Errorf("senior_approval_codes must not be empty"))
	}
	if c.PledgedMarker == "" {
		err = multierr.Append(err, fmt.Errorf("pledged_marker must not be empty"))
	}
	if strings.TrimSpace(c.RealEstateAssetType) == "" {
		err = multierr.Append(err, fmt.Errorf("real_estate_asset_type must not be empty"))
	}
	if len(c.RealEstateLabels)+len(c.MachineryLabels)+len(c.VehicleLabels) == 0 {
		err = multierr.Append(err, fmt.Errorf("at least one collateral label must be subject to revaluation"))
	}
	if c.ValuationBaseDays < 0 || c.ValuationToleranceDays < 0 {
		err = multierr.Append(err, fmt.Errorf("valuation day thresholds cannot be negative"))
	}
	if c.MonthDivisorDays <= 0 {
		err = multierr.Append(err, fmt.Errorf("month_divisor_days must be positive, got %d", c.MonthDivisorDays))
	}
	if c.DelayWindowStartYear > c.DelayWindowEndYear {
		err = multierr.Append(err, fmt.Errorf("delay window starts after it ends: %d > %d",
			c.DelayWindowStartYear, c.DelayWindowEndYear))
	}
	if c.TopN <= 0 {
		err = multierr.Append(err, fmt.Errorf("top_n must be positive, got %d", c.TopN))
	}
	return err
}
