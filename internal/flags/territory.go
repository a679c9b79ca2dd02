package flags

import (
	"strings"

	"credit-exposure-reconciler/internal/models"
)

// AssetMatch is a real estate asset of the register pledged on the collateral ledger
type AssetMatch struct {
	models.AssetLocation
	OffTerritory bool
}

// offTerritoryRule flags customers with real estate collateral located
// outside the audited unit's home provinces
func offTerritoryRule(r *run) {
	if !r.in.HasAssets || r.in.Collateral == nil || !r.in.Collateral.HasSecurityID {
		return
	}

	owners := make(map[string][]string)
	for _, row := range r.collateralRows() {
		if row.SecurityID != "" {
			owners[row.SecurityID] = append(owners[row.SecurityID], row.CustomerKey)
		}
	}

	home := make(map[string]bool, len(r.params.HomeProvinces))
	for _, p := range r.params.HomeProvinces {
		if p = strings.TrimSpace(p); p != "" {
			home[fold.String(p)] = true
		}
	}

	realEstate := fold.String(strings.TrimSpace(r.config.RealEstateAssetType))
	for _, asset := range r.in.Assets {
		keys, pledged := owners[asset.SecurityID]
		if !pledged || fold.String(strings.TrimSpace(asset.AssetType)) != realEstate {
			continue
		}
		m := AssetMatch{
			AssetLocation: asset,
			OffTerritory:  asset.Province != "" && !home[fold.String(asset.Province)],
		}
		if m.OffTerritory {
			for _, k := range keys {
				r.raise(k, models.FlagOffTerritory)
			}
		}
		r.detail.MatchedAssets = append(r.detail.MatchedAssets, m)
	}
}
