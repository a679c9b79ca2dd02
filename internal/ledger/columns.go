package ledger

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/multierr"
)

// CollateralColumns names the collateral ledger headers the pipeline reads
type CollateralColumns struct {
	CustomerKey     string `mapstructure:"customer_key" json:"customer_key"`
	Branch          string `mapstructure:"branch" json:"branch"`
	Product         string `mapstructure:"product" json:"product"`
	CollateralCode  string `mapstructure:"collateral_code" json:"collateral_code"`
	Balance         string `mapstructure:"balance" json:"balance"`
	CollateralValue string `mapstructure:"collateral_value" json:"collateral_value"`
	CustomerName    string `mapstructure:"customer_name" json:"customer_name"`
	CustomerType    string `mapstructure:"customer_type" json:"customer_type"`
	DebtGroup       string `mapstructure:"debt_group" json:"debt_group"`
	SecurityID      string `mapstructure:"security_id" json:"security_id"`
	ValuationDate   string `mapstructure:"valuation_date" json:"valuation_date"`
}

// DefaultCollateralColumns returns the headers of the core-banking export
func DefaultCollateralColumns() CollateralColumns {
	return CollateralColumns{
		CustomerKey:     "CIF_KH_VAY",
		Branch:          "BRANCH_VAY",
		Product:         "LOAI",
		CollateralCode:  "CAP_2",
		Balance:         "DU_NO_PHAN_BO_QUY_DOI",
		CollateralValue: "TS_KW_VND",
		CustomerName:    "TEN_KH_VAY",
		CustomerType:    "CUSTTPCD",
		DebtGroup:       "NHOM_NO",
		SecurityID:      "SECU_SRL_NUM",
		ValuationDate:   "VALUATION_DATE",
	}
}

// Required lists the columns without which the collateral pivot cannot be built
func (c CollateralColumns) Required() []string {
	return []string{c.CustomerKey, c.Product, c.Balance, c.CollateralValue}
}

// PurposeColumns names the purpose ledger headers the pipeline reads
type PurposeColumns struct {
	CustomerKey   string `mapstructure:"customer_key" json:"customer_key"`
	Branch        string `mapstructure:"branch" json:"branch"`
	ApprovalLevel string `mapstructure:"approval_level" json:"approval_level"`
	PurposeCode   string `mapstructure:"purpose_code" json:"purpose_code"`
	Balance       string `mapstructure:"balance" json:"balance"`
	ContractID    string `mapstructure:"contract_id" json:"contract_id"`
	SchemeCode    string `mapstructure:"scheme_code" json:"scheme_code"`
}

// DefaultPurposeColumns returns the headers of the loan-purpose export
func DefaultPurposeColumns() PurposeColumns {
	return PurposeColumns{
		CustomerKey:   "CUSTSEQLN",
		Branch:        "BRCD",
		ApprovalLevel: "CAP_PHE_DUYET",
		PurposeCode:   "MUC_DICH_VAY_CAP_4",
		Balance:       "DU_NO_QUY_DOI",
		ContractID:    "KHE_UOC",
		SchemeCode:    "SCHEME_CODE",
	}
}

// Required lists the columns without which the purpose pivot cannot be built
func (c PurposeColumns) Required() []string {
	return []string{c.CustomerKey, c.Balance}
}

// CodeTableColumns names the two columns of a code lookup table
type CodeTableColumns struct {
	Code  string `mapstructure:"code" json:"code"`
	Label string `mapstructure:"label" json:"label"`
}

// AuxiliaryColumns names the headers of the optional inputs
type AuxiliaryColumns struct {
	CollateralCodes CodeTableColumns `mapstructure:"collateral_codes" json:"collateral_codes"`
	PurposeCodes    CodeTableColumns `mapstructure:"purpose_codes" json:"purpose_codes"`

	CashContractID string `mapstructure:"cash_contract_id" json:"cash_contract_id"`

	AssetSecurityID string `mapstructure:"asset_security_id" json:"asset_security_id"`
	AssetType       string `mapstructure:"asset_type" json:"asset_type"`
	AssetAddress    string `mapstructure:"asset_address" json:"asset_address"`

	SettlementCustomer     string `mapstructure:"settlement_customer" json:"settlement_customer"`
	SettlementDate         string `mapstructure:"settlement_date" json:"settlement_date"`
	DisbursementCustomer   string `mapstructure:"disbursement_customer" json:"disbursement_customer"`
	DisbursementDate       string `mapstructure:"disbursement_date" json:"disbursement_date"`
	DelayCustomer          string `mapstructure:"delay_customer" json:"delay_customer"`
	DelayCustomerAlternate string `mapstructure:"delay_customer_alternate" json:"delay_customer_alternate"`
	DelayDueDate           string `mapstructure:"delay_due_date" json:"delay_due_date"`
	DelayPaymentDate       string `mapstructure:"delay_payment_date" json:"delay_payment_date"`
}

// DefaultAuxiliaryColumns returns the headers of the audit-department extracts
func DefaultAuxiliaryColumns() AuxiliaryColumns {
	return AuxiliaryColumns{
		CollateralCodes: CodeTableColumns{Code: "CODE CAP 2", Label: "CODE"},
		PurposeCodes:    CodeTableColumns{Code: "CODE_MDSDV4", Label: "GROUP"},

		CashContractID: "FORACID",

		AssetSecurityID: "C01",
		AssetType:       "C02",
		AssetAddress:    "C19",

		SettlementCustomer:     "CUSTSEQLN",
		SettlementDate:         "NGAY_TT",
		DisbursementCustomer:   "CIF",
		DisbursementDate:       "NGAY_GIAI_NGAN",
		DelayCustomer:          "CIF_ID",
		DelayCustomerAlternate: "CIF",
		DelayDueDate:           "NGAY_DEN_HAN_TT",
		DelayPaymentDate:       "NGAY_THANH_TOAN",
	}
}

// Layout bundles every column mapping of a run
type Layout struct {
	Collateral CollateralColumns `mapstructure:"collateral" json:"collateral"`
	Purpose    PurposeColumns    `mapstructure:"purpose" json:"purpose"`
	Auxiliary  AuxiliaryColumns  `mapstructure:"auxiliary" json:"auxiliary"`
}

// DefaultLayout returns the default column mapping
func DefaultLayout() Layout {
	return Layout{
		Collateral: DefaultCollateralColumns(),
		Purpose:    DefaultPurposeColumns(),
		Auxiliary:  DefaultAuxiliaryColumns(),
	}
}

// Validate reports every blank column name. DelayCustomerAlternate may be blank.
func (l Layout) Validate() error {
	var err error
	err = multierr.Append(err, requireNonBlank("collateral", l.Collateral))
	err = multierr.Append(err, requireNonBlank("purpose", l.Purpose))
	err = multierr.Append(err, requireNonBlank("auxiliary.collateral_codes", l.Auxiliary.CollateralCodes))
	err = multierr.Append(err, requireNonBlank("auxiliary.purpose_codes", l.Auxiliary.PurposeCodes))
	err = multierr.Append(err, requireNonBlank("auxiliary", l.Auxiliary, "DelayCustomerAlternate"))
	return err
}

func requireNonBlank(prefix string, v interface{}, optional ...string) error {
	skip := make(map[string]bool, len(optional))
	for _, o := range optional {
		skip[o] = true
	}

	var err error
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Type.Kind() != reflect.String || skip[f.Name] {
			continue
		}
		if strings.TrimSpace(rv.Field(i).String()) == "" {
			err = multierr.Append(err, fmt.Errorf("%s.%s column name is empty", prefix, f.Tag.Get("mapstructure")))
		}
	}
	return err
}
