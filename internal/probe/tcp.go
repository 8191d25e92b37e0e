package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/schnooty/agent/internal/models"
)

type tcpParams struct {
	Hostname string `json:"hostname"`
	Port     *int   `json:"port"`
}

// TCP probes a socket: OK if the connection opens, DOWN otherwise. The
// connection is closed immediately after the handshake.
type TCP struct{}

// NewTCP creates the TCP driver.
func NewTCP() *TCP { return &TCP{} }

// Type implements Driver.
func (t *TCP) Type() models.MonitorType { return models.TypeTCP }

// Probe implements Driver.
func (t *TCP) Probe(ctx context.Context, monitor models.Monitor, builder *models.StatusBuilder) (models.MonitorStatus, error) {
	var params tcpParams
	if err := models.DecodeBody(monitor.Body, &params); err != nil {
		return models.MonitorStatus{}, fmt.Errorf("decoding tcp monitor body: %w", err)
	}

	builder.WriteLog("Checking monitor configuration")
	builder.Describe("Connection to host is successful over TCP")

	if params.Hostname == "" || params.Port == nil {
		builder.WriteLog("Monitor is missing hostname, port, or both")
		return builder.Down(
			"Successful connection over TCP",
			"Monitor is misconfigured. Please check it has both a hostname and port set",
		), nil
	}

	hostPort := net.JoinHostPort(params.Hostname, strconv.Itoa(*params.Port))
	expected := fmt.Sprintf("Successful connection to %s over TCP", hostPort)

	builder.WriteLog(fmt.Sprintf("Opening connection to %s", hostPort))

	dialer := net.Dialer{Timeout: monitor.EffectiveTimeout(DefaultTimeout)}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		builder.WriteLog(fmt.Sprintf("Error connecting to %s", hostPort))
		return builder.Down(expected, fmt.Sprintf("Failed to connect: %v", err)), nil
	}
	conn.Close()

	builder.WriteLog("Connection successfully established.")
	return builder.OK(expected, "Connection was successful"), nil
}
