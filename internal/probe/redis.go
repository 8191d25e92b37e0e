package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schnooty/agent/internal/models"
)

type redisConstraint struct {
	Name     string `json:"name"`
	Operator string `json:"operator"` // EQ, NE, LT, LE, GT, GE
	Value    string `json:"value"`
}

type redisParams struct {
	Host        string            `json:"host"`
	Port        *int              `json:"port"`
	DB          int               `json:"db"`
	Username    string            `json:"username"`
	Password    string            `json:"password"`
	Constraints []redisConstraint `json:"constraints"`
}

// Redis issues INFO against an instance and evaluates constraints over the
// returned fields. OK iff every constraint holds.
type Redis struct {
	fetchInfo func(ctx context.Context, params redisParams, timeout time.Duration) (string, error)
}

// NewRedis creates the Redis driver.
func NewRedis() *Redis {
	return &Redis{fetchInfo: redisInfo}
}

// Type implements Driver.
func (d *Redis) Type() models.MonitorType { return models.TypeRedis }

// Probe implements Driver. Connection and INFO failures are returned as
// errors ("could not start"); constraint failures produce a DOWN status.
func (d *Redis) Probe(ctx context.Context, monitor models.Monitor, builder *models.StatusBuilder) (models.MonitorStatus, error) {
	var params redisParams
	if err := models.DecodeBody(monitor.Body, &params); err != nil {
		return models.MonitorStatus{}, fmt.Errorf("decoding redis monitor body: %w", err)
	}
	if params.Host == "" || params.Port == nil {
		return models.MonitorStatus{}, errors.New("redis monitor is missing host or port")
	}

	builder.WriteLog(fmt.Sprintf("Opening connection to redis on %s:%d", params.Host, *params.Port))
	builder.WriteLog("Loading data using INFO command")

	raw, err := d.fetchInfo(ctx, params, monitor.EffectiveTimeout(DefaultTimeout))
	if err != nil {
		return models.MonitorStatus{}, fmt.Errorf("loading redis INFO: %w", err)
	}

	info := parseInfo(raw)

	builder.WriteLog(fmt.Sprintf("Successfully loaded INFO data. Now checking %d constraints.", len(params.Constraints)))

	failed := 0
	for _, constraint := range params.Constraints {
		builder.WriteLog(fmt.Sprintf("Checking if %s %s '%s'", constraint.Name, constraint.Operator, constraint.Value))

		fieldValue, ok := info[constraint.Name]
		if !ok {
			builder.WriteLog(fmt.Sprintf("Failed to find field '%s'", constraint.Name))
			failed++
			continue
		}
		if constraintHolds(constraint.Operator, fieldValue, constraint.Value) {
			builder.WriteLog(fmt.Sprintf("Constraint check OK. Value of '%s' %s %s", constraint.Name, constraint.Operator, fieldValue))
		} else {
			builder.WriteLog(fmt.Sprintf("Constraint check FAILED. Value of '%s' %s %s", constraint.Name, constraint.Operator, fieldValue))
			failed++
		}
	}

	const expected = "0 failed constraints"
	if failed == 0 {
		return builder.OK(expected, "Zero failed constraints"), nil
	}
	return builder.Down(expected, fmt.Sprintf("%d failed constraint(s)", failed)), nil
}

func redisInfo(ctx context.Context, params redisParams, timeout time.Duration) (string, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(params.Host, strconv.Itoa(*params.Port)),
		Username:     params.Username,
		Password:     params.Password,
		DB:           params.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	defer client.Close()

	return client.Info(ctx).Result()
}

// parseInfo converts INFO output into a key/value map. Lines have the form
// "key:value"; section headers start with '#'.
func parseInfo(raw string) map[string]string {
	info := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		info[key] = value
	}
	return info
}

// constraintHolds applies a comparison operator to two string values. EQ
// and NE compare strings; the ordered operators compare base-10 integers,
// and either side failing to parse fails the constraint. Unknown operators
// fail too.
func constraintHolds(operator, lhs, rhs string) bool {
	switch operator {
	case "EQ":
		return lhs == rhs
	case "NE":
		return lhs != rhs
	case "LT", "LE", "GT", "GE":
		l, lerr := strconv.ParseInt(lhs, 10, 64)
		r, rerr := strconv.ParseInt(rhs, 10, 64)
		if lerr != nil || rerr != nil {
			return false
		}
		switch operator {
		case "LT":
			return l < r
		case "LE":
			return l <= r
		case "GT":
			return l > r
		case "GE":
			return l >= r
		}
	}
	return false
}
