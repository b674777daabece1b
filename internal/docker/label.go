package docker

import (
	"fmt"
	"strings"
	"time"

	"github.com/shinji-kodama/vercel-deploy/internal/model"
)

// Label keys stored on every session container. Labels are the only
// record of which run and project created a container; there is no
// state file.
const (
	// LabelPrefix namespaces vercel-deploy labels.
	LabelPrefix = "vercel-deploy."

	// LabelManagedBy marks containers created by vercel-deploy. It is the
	// key used for label filtering in ListManagedContainers.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelRunID stores the report run ID.
	LabelRunID = LabelPrefix + "run-id"

	// LabelProjectName stores the Vercel project name.
	LabelProjectName = LabelPrefix + "project-name"

	// LabelProjectDir stores the absolute host path bind-mounted into the
	// container.
	LabelProjectDir = LabelPrefix + "project-dir"

	// LabelCreatedAt stores the RFC3339 creation time.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "vercel-deploy"

// BuildLabels constructs the label map for a session container.
func BuildLabels(s *model.SessionInfo) map[string]string {
	return map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelRunID:       s.RunID,
		LabelProjectName: s.ProjectName,
		LabelProjectDir:  s.ProjectDir,
		LabelCreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a SessionInfo from container labels. It is the
// inverse of BuildLabels. All labels are required.
func ParseLabels(labels map[string]string) (*model.SessionInfo, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelRunID,
		LabelProjectName,
		LabelProjectDir,
		LabelCreatedAt,
	}

	// Report every missing key at once.
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.SessionInfo{
		RunID:       labels[LabelRunID],
		ProjectName: labels[LabelProjectName],
		ProjectDir:  labels[LabelProjectDir],
		CreatedAt:   createdAt,
	}, nil
}

// FilterLabels returns the label filter that selects vercel-deploy
// containers.
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
