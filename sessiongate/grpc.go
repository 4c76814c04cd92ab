package sessiongate

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor applying the
// gate's decision table to RPCs. Session cookies are read from the "cookie"
// metadata key. authMethods are full-method prefixes (e.g. "/auth.v1.Auth/")
// treated like auth routes.
//
// gRPC has no redirects: an anonymous call to a protected method fails with
// Unauthenticated and an authenticated call to an auth method fails with
// FailedPrecondition. Cookie mutations are sent back as "set-cookie" header
// metadata on every outcome.
func UnaryServerInterceptor(cfg *Config, authMethods ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()

		md, _ := metadata.FromIncomingContext(ctx)

		requestID := firstValue(md, "x-request-id")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		claims, mutations, err := verifyClaims(ctx, cfg, cookiesFromMetadata(md))

		res := Result{
			Claims:    claims,
			Cookies:   mutations,
			RequestID: requestID,
			Err:       err,
			Class:     ClassifyPath(info.FullMethod, authMethods),
		}
		switch {
		case err != nil:
			res.Verdict = VerdictVerificationFailed
		case claims != nil:
			res.Verdict = VerdictAuthenticated
		default:
			res.Verdict = VerdictAnonymous
		}
		res.Outcome = Decide(claims != nil, res.Class)
		res.Latency = time.Since(startTime)

		logGateEvent(cfg.logger, res, info.FullMethod)
		cfg.metrics.observe(res)

		if header := setCookieMetadata(mutations); header.Len() > 0 {
			// Best effort: fails only if headers were already sent
			_ = grpc.SetHeader(ctx, header)
		}

		switch res.Outcome {
		case OutcomeRedirectLogin:
			return nil, status.Error(codes.Unauthenticated, "session required")
		case OutcomeRedirectProtected:
			return nil, status.Error(codes.FailedPrecondition, "already authenticated")
		}

		ctx = WithRequestID(ctx, requestID)
		if claims != nil {
			ctx = WithClaims(ctx, claims)
		}
		return handler(ctx, req)
	}
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// cookiesFromMetadata parses cookie metadata using net/http's cookie grammar
func cookiesFromMetadata(md metadata.MD) []*http.Cookie {
	values := md.Get("cookie")
	if len(values) == 0 {
		return nil
	}
	r := &http.Request{Header: http.Header{"Cookie": values}}
	return r.Cookies()
}

func setCookieMetadata(mutations []*http.Cookie) metadata.MD {
	md := metadata.MD{}
	for _, c := range mutations {
		if c == nil || c.Name == "" {
			continue
		}
		md.Append("set-cookie", c.String())
	}
	return md
}
