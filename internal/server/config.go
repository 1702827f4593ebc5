package server

import (
	"encoding/json"
	"os"
)

type Config struct {
	FileLog string   `json:"fileLog"`
	Port    string   `json:"port"`
	Ssl     bool     `json:"ssl"`
	SslCert string   `json:"sslCert"`
	SslKey  string   `json:"sslKey"`
	Origins []string `json:"origins"`
}

var GlobalConfig = Config{
	FileLog: "chainshop.log",
	Port:    ":8000",
	Origins: []string{
		"http://0.0.0.0:3000",
		"http://localhost:3000",
	},
}

var PathFile string

// ConfigLoad reads the server config from the path in os.Args[1], falling
// back to ./config.json. A missing file keeps the defaults.
func ConfigLoad() {
	if len(os.Args) > 1 {
		PathFile = os.Args[1]
	} else {
		PathFile = "./config.json"
	}

	configFile, err := os.Open(PathFile)
	if err == nil {
		defer configFile.Close()
		jsonParser := json.NewDecoder(configFile)
		jsonParser.Decode(&GlobalConfig)
	}

	SetLogger(GlobalConfig.FileLog)
}
