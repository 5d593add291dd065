package utils

import (
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// MergeEnvironment merges multiple environment maps with later maps having
// higher precedence. Returns a container environment override list sorted by
// name; empty names are dropped.
func MergeEnvironment(pp ...map[string]string) []ecstypes.KeyValuePair {
	m := map[string]string{}
	for _, p := range pp {
		maps.Copy(m, p)
	}
	delete(m, "")

	results := []ecstypes.KeyValuePair{}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, ecstypes.KeyValuePair{
			Name:  aws.String(k),
			Value: aws.String(m[k]),
		})
	}

	return results
}
