package api

import (
	"fmt"
	"net/url"
	"strings"

	"routeplan/internal/model"
	"routeplan/internal/webhooks"
)

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	for _, e := range req.Events {
		if !webhooks.ValidEventType(e) {
			return fmt.Errorf("unknown event type: %s", e)
		}
	}
	return nil
}

func validateClusterRequest(req *model.ClusterRequest) error {
	if req.K < 0 {
		return fmt.Errorf("k must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	return nil
}

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if err := validateClusterRequest(&model.ClusterRequest{K: req.K, MaxIterations: req.MaxIterations}); err != nil {
		return err
	}
	if req.ImproveIterations < 0 {
		return fmt.Errorf("improveIterations must be >= 0")
	}
	return nil
}
