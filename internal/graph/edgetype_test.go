package graph

import (
	"testing"

	"github.com/strataforge/knowgraph/internal/types"
)

func TestInferEdgeType(t *testing.T) {
	cases := []struct {
		name   string
		target string
		call   types.ServiceCall
		want   types.EdgeType
	}{
		{"grpc keyword", "grpc://billing-service", types.ServiceCall{}, types.EdgeGRPC},
		{"grpc port", "billing-service:50051", types.ServiceCall{}, types.EdgeGRPC},
		{"grpc call type", "billing-service", types.ServiceCall{CallType: types.CallGRPC}, types.EdgeGRPC},
		{"queue keyword", "amqp://rabbitmq/orders", types.ServiceCall{}, types.EdgeQueue},
		{"queue publish call type", "orders.tasks.create", types.ServiceCall{CallType: types.CallQueuePublish}, types.EdgeQueue},
		{"db keyword", "postgres://db-primary:5432/app", types.ServiceCall{}, types.EdgeDB},
		{"http prefix", "http://user-service/api/users", types.ServiceCall{}, types.EdgeHTTP},
		{"api substring no scheme", "user-service/api/users", types.ServiceCall{}, types.EdgeHTTP},
		{"unrecognized defaults http", "user-service", types.ServiceCall{}, types.EdgeHTTP},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferEdgeType(tc.target, tc.call); got != tc.want {
				t.Errorf("InferEdgeType(%q) = %v, want %v", tc.target, got, tc.want)
			}
		})
	}
}
