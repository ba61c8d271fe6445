package api

import "context"

func withOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey, orgID)
}

func orgFrom(ctx context.Context) string {
	org, _ := ctx.Value(orgKey).(string)
	return org
}
