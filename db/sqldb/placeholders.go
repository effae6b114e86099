package sqldb

import (
	"strconv"
	"strings"
)

var PlaceholderPrefixForDBType = map[string]byte{
	"mysql": '?',
	"pgsql": '$',
}

// ReplaceStaticPlaceholders numbers each `?` for dialects like pgsql
// (`$1, $2, ...`). Dynamic placeholders `??` are left alone.
func ReplaceStaticPlaceholders(sql string, prefix byte) string {
	if prefix == '?' || prefix == 0 {
		return sql
	}
	var builder strings.Builder
	builder.Grow(len(sql) + 8)
	cnt := 1
	i := 0
	for i < len(sql) {
		if sql[i] == '?' {
			if i+1 < len(sql) && sql[i+1] == '?' {
				builder.WriteString("??")
				i += 2
				continue
			}
			builder.WriteByte(prefix)
			builder.WriteString(strconv.Itoa(cnt))
			cnt++
		} else {
			builder.WriteByte(sql[i])
		}
		i++
	}
	return builder.String()
}
