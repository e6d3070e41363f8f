package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/audiosniff/internal/controller"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status      string `json:"status"`
			Records     int    `json:"records"`
			Tabs        int    `json:"tabs"`
			ScannedTabs int    `json:"scanned_tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/healthz", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			st := svc.Status(ctx)
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Records = st.Records
			out.Body.Tabs = st.Tabs
			out.Body.ScannedTabs = st.ScannedTabs
			return out, nil
		})

	type scanOutput struct {
		Body controller.ScanResult
	}
	huma.Register(api, huma.Operation{OperationID: "scan-pages", Method: http.MethodPost, Path: "/api/v1/scan", Summary: "Scan attached pages for audio now", Tags: []string{"Scan"}},
		func(ctx context.Context, input *struct {
			Body struct {
				TabID string `json:"tab_id,omitempty" doc:"Scan only this tab; omit for all tracked tabs"`
			}
		}) (*scanOutput, error) {
			res, err := svc.Scan(ctx, input.Body.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &scanOutput{Body: res}, nil
		})

	type messageOutput struct {
		Body relay.Response
	}
	huma.Register(api, huma.Operation{OperationID: "post-message", Method: http.MethodPost, Path: "/api/v1/messages", Summary: "Send a relay message", Description: "Accepts a {\"type\": ...} message and always answers 200 with a {success, data, error} envelope. See /docs/messages.", Tags: []string{"Messages"}},
		func(ctx context.Context, input *struct {
			RawBody []byte
		}) (*messageOutput, error) {
			return &messageOutput{Body: svc.HandleMessage(ctx, input.RawBody)}, nil
		})
}
