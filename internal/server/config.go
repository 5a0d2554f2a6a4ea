package server

type HttpConfig struct {
	// Host is the address to bind to.
	Host string `conf:"host"`

	// Port is the port to listen on.
	Port int `conf:"port"`

	// H2c enables cleartext HTTP/2 upgrades.
	H2c bool `conf:"h2c"`
}
