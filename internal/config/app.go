package config

type AppConfig struct {
	Server  ServerConfig
	Log     LogConfig
	Cache   CacheConfig
	Engine  EngineConfig
	Ledger  LedgerConfig
	Content ContentConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	cacheCfg, err := LoadCache()
	if err != nil {
		return AppConfig{}, err
	}
	engineCfg, err := LoadEngine()
	if err != nil {
		return AppConfig{}, err
	}
	ledgerCfg, err := LoadLedger()
	if err != nil {
		return AppConfig{}, err
	}
	contentCfg, err := LoadContent()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:  serverCfg,
		Log:     logCfg,
		Cache:   cacheCfg,
		Engine:  engineCfg,
		Ledger:  ledgerCfg,
		Content: contentCfg,
	}, nil
}
