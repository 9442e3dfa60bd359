package config

import (
	"os"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// DockerHostGateway is the hostname that reaches the Docker host from inside a container.
const DockerHostGateway = "host.docker.internal"

// IsRunningInDocker returns true if the process runs inside a Docker container.
// Detection is based on the presence of /.dockerenv. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker returns the address a pool session should dial.
// Inside Docker, loopback hosts are rewritten to DockerHostGateway so that
// sessions can reach a database published on the host machine.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	return resolveLoopback(host)
}

func resolveLoopback(host string) string {
	switch host {
	case "localhost", "127.0.0.1", "::1", "":
		return DockerHostGateway
	default:
		return host
	}
}
