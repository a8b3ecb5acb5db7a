package graph

import (
	"regexp"
	"strings"

	"github.com/strataforge/knowgraph/internal/types"
)

var (
	grpcPortPattern = regexp.MustCompile(`:50\d\d\b`)
	grpcKeywords     = []string{"grpc", ":50051", ":50052"}
	queueKeywords    = []string{"queue", "amqp", "rabbitmq", "kafka", "celery", "sqs", "pubsub"}
	dbKeywords       = []string{"postgres", "mysql", "mongo", "redis", "db", "database", "cassandra"}
)

// InferEdgeType classifies a raw call target into an EdgeType. The
// rule table is ordered: grpc (port or keyword), then queue keywords,
// then db keywords, then http as the default for everything else.
// Grpc is checked before http because a hostname carrying a grpc port
// or keyword is far more informative than the absence of an http
// prefix; an unrecognized target still lands on http, never unknown.
func InferEdgeType(rawTarget string, call types.ServiceCall) types.EdgeType {
	lower := strings.ToLower(rawTarget)

	if grpcPortPattern.MatchString(lower) || containsAny(lower, grpcKeywords) || call.CallType == types.CallGRPC {
		return types.EdgeGRPC
	}
	if containsAny(lower, queueKeywords) || call.CallType == types.CallQueuePublish || call.CallType == types.CallQueueSubscribe {
		return types.EdgeQueue
	}
	if containsAny(lower, dbKeywords) {
		return types.EdgeDB
	}
	return types.EdgeHTTP
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
