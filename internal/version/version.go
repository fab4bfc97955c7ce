// Package version хранит сведения о сборке, которые подставляются через -ldflags:
//
//	-X github.com/vladislavdragonenkov/fulfillment/internal/version.version=v1.2.0
package version

import "fmt"

// ServiceName — имя сервиса в логах и client id Kafka.
const ServiceName = "fulfillment-service"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

func GetVersion() string { return version }

func GetCommit() string { return commit }

func GetDate() string { return date }

func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", ServiceName, version, commit, date)
}
