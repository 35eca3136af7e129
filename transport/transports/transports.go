// Package transports imports every built-in transport for registration with
// the default registry.
package transports

import (
	_ "github.com/drblury/projectionflow/transport/aws"
	_ "github.com/drblury/projectionflow/transport/channel"
	_ "github.com/drblury/projectionflow/transport/kafka"
	_ "github.com/drblury/projectionflow/transport/nats"
	_ "github.com/drblury/projectionflow/transport/rabbitmq"
)
