package model

import "time"

// ConnectionParams identifies one logical database connection. Oracle uses
// SID xor ServiceName (defaulting to XEPDB1 when neither is given); SQLite
// uses FilePath (or Database==":memory:").
type ConnectionParams struct {
	Dialect     DatabaseType `json:"dialect"`
	Host        string       `json:"host,omitempty"`
	Port        int          `json:"port,omitempty"`
	Database    string       `json:"database,omitempty"`
	Username    string       `json:"username,omitempty"`
	Password    string       `json:"password,omitempty"`
	SID         string       `json:"sid,omitempty"`
	ServiceName string       `json:"service_name,omitempty"`
	FilePath    string       `json:"file_path,omitempty"`
}

// Key returns the identity used by PoolManager to key a ConnectionPool:
// host:port:database:user. File-based dialects use the file path in place
// of host:port.
func (p ConnectionParams) Key() string {
	if p.FilePath != "" {
		return string(p.Dialect) + "|" + p.FilePath
	}
	if p.Database == ":memory:" {
		return string(p.Dialect) + "|:memory:"
	}
	return string(p.Dialect) + "|" + p.Host + ":" + itoa(p.Port) + ":" + p.Database + ":" + p.Username
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Equal reports whether two ConnectionParams describe the same logical
// connection, used by SessionRegistry.GetOrCreate to decide reuse.
func (p ConnectionParams) Equal(o ConnectionParams) bool {
	return p.Dialect == o.Dialect &&
		p.Host == o.Host &&
		p.Port == o.Port &&
		p.Database == o.Database &&
		p.Username == o.Username &&
		p.FilePath == o.FilePath
}

// Session binds a session_id to connection parameters and an optional
// cached schema snapshot.
type Session struct {
	SessionID        string
	Params           ConnectionParams
	CreatedAt        time.Time
	LastAccessed     time.Time
	RequestCount     int
	SchemaCache      *SchemaSnapshot
	SchemaCacheTime  time.Time
}

// Touch updates last-accessed bookkeeping on every request.
func (s *Session) Touch() {
	s.LastAccessed = time.Now()
	s.RequestCount++
}

// IsExpired reports whether the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	return time.Since(s.LastAccessed) > timeout
}
