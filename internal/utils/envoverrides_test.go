package utils

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

func TestMergeEnvironment(t *testing.T) {
	tests := []struct {
		name   string
		inputs []map[string]string
		want   []ecstypes.KeyValuePair
	}{
		{
			name: "single map",
			inputs: []map[string]string{
				{"INFILE": "InProgress/x.csv", "DISPATCH_ID": "abc"},
			},
			want: []ecstypes.KeyValuePair{
				{Name: aws.String("DISPATCH_ID"), Value: aws.String("abc")},
				{Name: aws.String("INFILE"), Value: aws.String("InProgress/x.csv")},
			},
		},
		{
			name: "override wins",
			inputs: []map[string]string{
				{"INFILE": "ToDo/x.csv", "ENV": "stg"},
				{"INFILE": "InProgress/x.csv"},
			},
			want: []ecstypes.KeyValuePair{
				{Name: aws.String("ENV"), Value: aws.String("stg")},
				{Name: aws.String("INFILE"), Value: aws.String("InProgress/x.csv")},
			},
		},
		{
			name: "empty name dropped",
			inputs: []map[string]string{
				{"": "ignored", "INFILE": "InProgress/x.csv"},
			},
			want: []ecstypes.KeyValuePair{
				{Name: aws.String("INFILE"), Value: aws.String("InProgress/x.csv")},
			},
		},
		{
			name:   "empty maps",
			inputs: []map[string]string{},
			want:   []ecstypes.KeyValuePair{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeEnvironment(tt.inputs...)

			if got == nil {
				t.Fatalf("MergeEnvironment() = nil, want non-nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("MergeEnvironment() length = %v, want %v", len(got), len(tt.want))
			}

			for i := range tt.want {
				gotName, wantName := aws.ToString(got[i].Name), aws.ToString(tt.want[i].Name)
				gotValue, wantValue := aws.ToString(got[i].Value), aws.ToString(tt.want[i].Value)
				if gotName != wantName || gotValue != wantValue {
					t.Errorf("MergeEnvironment()[%d] = %s=%s, want %s=%s", i, gotName, gotValue, wantName, wantValue)
				}
			}
		})
	}
}
