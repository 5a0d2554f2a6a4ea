package lambda

// ProxySource selects the AWS event shape the proxy translates into
// plain HTTP requests.
type ProxySource string

const (
	// ProxySourceApiGatewayV1 translates API Gateway v1 (REST API) events.
	ProxySourceApiGatewayV1 ProxySource = "API_GW_V1"

	// ProxySourceApiGatewayV2 translates API Gateway v2 (HTTP API) events.
	ProxySourceApiGatewayV2 ProxySource = "API_GW_V2"

	// ProxySourceAlb translates Application Load Balancer target events.
	ProxySourceAlb ProxySource = "ALB"
)

// DefaultProxySource is used when no proxy source is configured.
const DefaultProxySource = ProxySourceApiGatewayV2

func (p ProxySource) String() string {
	return string(p)
}

type Config struct {
	// ProxySource is the shape of the AWS Lambda events to expect.
	ProxySource ProxySource `conf:"lambda_proxy_source"`
}
