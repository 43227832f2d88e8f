package interfaces

import (
	"context"

	"github.com/dnsscience/telemetry/dto"
)

type EventPublisher interface {
	PublishScanCompleted(ctx context.Context, event dto.ScanCompleted) error
}
