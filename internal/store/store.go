package store

import (
	"fmt"
	"os"
	"path/filepath"

	"licensepanel/pkg/contracts/domain"
)

// Document file names under the data directory.
const (
	ProductsFile  = "products.json"
	LicensesFile  = "licenses.json"
	LogsFile      = "logs.json"
	VouchersFile  = "vouchers.json"
	BlacklistFile = "blacklist.json"
	SettingsFile  = "settings.json"
	BotLogsFile   = "bot-logs.json"
)

// Store groups the repositories of one data directory.
type Store struct {
	Dir       string
	Licenses  *LicenseStore
	Products  *ProductStore
	Blacklist *BlacklistStore
	Settings  *SettingsStore
	Vouchers  *VoucherStore
	Logs      *CappedLog[domain.ValidationLog]
	BotLogs   *CappedLog[domain.BotLog]
}

// Open prepares dir and returns the repositories stored in it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	path := func(name string) string { return filepath.Join(dir, name) }
	return &Store{
		Dir:       dir,
		Licenses:  NewLicenseStore(path(LicensesFile)),
		Products:  NewProductStore(path(ProductsFile)),
		Blacklist: NewBlacklistStore(path(BlacklistFile)),
		Settings:  NewSettingsStore(path(SettingsFile)),
		Vouchers:  NewVoucherStore(path(VouchersFile)),
		Logs:      NewCappedLog[domain.ValidationLog](path(LogsFile), domain.MaxValidationLogs),
		BotLogs:   NewCappedLog[domain.BotLog](path(BotLogsFile), domain.MaxBotLogs),
	}, nil
}
