package throttle

import (
	"encoding/json"
	"fmt"
	"time"
)

type BucketConf struct {
	Burst     int           // maximum number of tokens in the bucket
	Increment int           // how many tokens to add each period
	Period    time.Duration // how often to add Increment
}

// UnmarshalJSON reads {"burst": 5, "increment": 1, "period": "10s"}.
func (c *BucketConf) UnmarshalJSON(data []byte) error {
	var raw struct {
		Burst     int    `json:"burst"`
		Increment int    `json:"increment"`
		Period    string `json:"period"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	period, err := time.ParseDuration(raw.Period)
	if err != nil {
		return fmt.Errorf("bucket period: %w", err)
	}
	if raw.Burst <= 0 || raw.Increment <= 0 || period <= 0 {
		return fmt.Errorf("bucket burst, increment and period must be positive")
	}
	*c = BucketConf{Burst: raw.Burst, Increment: raw.Increment, Period: period}
	return nil
}
