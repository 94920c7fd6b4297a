package metadata

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/voltlake/go-aws/log"
)

type containerMetadata struct {
	ContainerID string `json:"ContainerID"`
}

// InstanceID returns a short identifier for the running instance: the last 12
// characters of the ECS container id when the metadata file is available,
// otherwise the sanitized hostname.
func InstanceID() string {
	if filename := os.Getenv("ECS_CONTAINER_METADATA_FILE"); filename != "" {
		if id := containerID(filename); id != "" {
			return id
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Errorf("Failed to get hostname: %v", err)
		return ""
	}

	return strings.NewReplacer(".", "", "-", "").Replace(hostname)
}

func containerID(filename string) string {
	data, err := os.ReadFile(filename)
	if err != nil {
		log.Errorf("Failed to read container metadata file %s: %v", filename, err)
		return ""
	}

	var metadata containerMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		log.Errorf("Failed to parse container metadata: %v", err)
		return ""
	}

	id := metadata.ContainerID
	if len(id) > 12 {
		id = id[len(id)-12:]
	}

	return id
}
