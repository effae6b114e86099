package sqldb

const DefaultPoolSize = 10

type Conf struct {
	Type     string `json:"type"` // mysql, pgsql
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	PW       string `json:"pw"`
	DB       string `json:"db"`
	TZ       string `json:"tz"`        // Connection Timezone
	SSLMode  string `json:"sslmode"`   // pgsql only, default "disable"
	MaxConns int    `json:"max_conns"` // pool size, default DefaultPoolSize
	DSN      string `json:"dsn"`       // To Overwrite Default DSN
}

// PoolSize is MaxConns or the default.
func (c *Conf) PoolSize() int {
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	return DefaultPoolSize
}
