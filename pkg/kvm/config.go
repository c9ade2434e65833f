package kvm

// Config points at the data directory and the user-driven configuration
// files. Only the YAML files are live-reloadable.
type Config struct {
	DataDir      string `json:"dataDir"`
	ServerConfig string `json:"serverConfig"`
	ClientConfig string `json:"clientConfig"`
}

// DefaultPort is the QUIC listen port used when the config names none.
const DefaultPort = "12333"

// ServerConfig is read from server.yml.
type ServerConfig struct {
	// ListenAddr is the UDP host:port of the QUIC listener.
	ListenAddr string `json:"listenAddr"`
	// LegacyListenAddr optionally adds a TLS/TCP listener for old clients.
	LegacyListenAddr string `json:"legacyListenAddr"`
	Certificate      string `json:"certificate"`
	Key              string `json:"key"`
	// ToggleKey is the evdev code of the key whose release switches input
	// between the host and the clients. Zero selects right control.
	ToggleKey uint16 `json:"toggleKey"`
	// Clipboard selects the clipboard backend: auto, x11, wayland or off.
	Clipboard string `json:"clipboard"`
}

// ClientConfig is read from client.yml.
type ClientConfig struct {
	ServerAddr string `json:"serverAddr"`
	// CA is a PEM file the server certificate must chain to. Empty uses
	// the system roots.
	CA string `json:"ca"`
	// ServerName overrides the hostname expected in the certificate.
	ServerName string `json:"serverName"`
	// Legacy selects the single-stream TLS/TCP protocol.
	Legacy bool `json:"legacy"`
	// Clipboard selects the clipboard backend: auto, x11, wayland or off.
	Clipboard string `json:"clipboard"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":" + DefaultPort,
	}
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{}
}
