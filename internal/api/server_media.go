package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/audiosniff/internal/controller"
	"github.com/dgnsrekt/audiosniff/internal/media"
	"github.com/dgnsrekt/audiosniff/internal/relay"
)

type mediaIDInput struct {
	ID string `path:"id" doc:"Captured media id"`
}

func registerMediaHandlers(api huma.API, svc Service) {
	type listMediaOutput struct {
		Body struct {
			Count int            `json:"count"`
			Media []media.Record `json:"media"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-media", Method: http.MethodGet, Path: "/api/v1/media", Summary: "List captured audio", Tags: []string{"Media"}},
		func(ctx context.Context, input *struct {
			Query string `query:"q" doc:"Case-insensitive substring matched against filename, tab title and URL"`
			Sort  string `query:"sort" default:"date" enum:"name,date,size" doc:"Sort key"`
			Order string `query:"order" default:"desc" enum:"asc,desc" doc:"Sort direction"`
		}) (*listMediaOutput, error) {
			records, err := svc.ListMedia(ctx, controller.ListOptions{Query: input.Query, Sort: input.Sort, Order: input.Order})
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listMediaOutput{}
			out.Body.Media = records
			if out.Body.Media == nil {
				out.Body.Media = []media.Record{}
			}
			out.Body.Count = len(out.Body.Media)
			return out, nil
		})

	type getMediaOutput struct {
		Body media.Record
	}
	huma.Register(api, huma.Operation{OperationID: "get-media", Method: http.MethodGet, Path: "/api/v1/media/{id}", Summary: "Get one captured record", Tags: []string{"Media"}},
		func(ctx context.Context, input *mediaIDInput) (*getMediaOutput, error) {
			rec, err := svc.GetMedia(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getMediaOutput{Body: rec}, nil
		})

	type clearMediaOutput struct {
		Body struct {
			Status  string `json:"status"`
			Removed int    `json:"removed"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "clear-media", Method: http.MethodDelete, Path: "/api/v1/media", Summary: "Clear all captured audio", Tags: []string{"Media"}},
		func(ctx context.Context, input *struct{}) (*clearMediaOutput, error) {
			n, err := svc.ClearMedia(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &clearMediaOutput{}
			out.Body.Status = "cleared"
			out.Body.Removed = n
			return out, nil
		})

	type removeMediaOutput struct {
		Body struct {
			Status  string `json:"status"`
			Removed bool   `json:"removed"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "remove-media", Method: http.MethodDelete, Path: "/api/v1/media/{id}", Summary: "Remove one captured record", Description: "Removing an id that is not present succeeds with removed=false.", Tags: []string{"Media"}},
		func(ctx context.Context, input *mediaIDInput) (*removeMediaOutput, error) {
			removed, err := svc.RemoveMedia(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &removeMediaOutput{}
			out.Body.Status = "ok"
			out.Body.Removed = removed
			return out, nil
		})

	type downloadOutput struct {
		Body relay.DownloadResult
	}
	huma.Register(api, huma.Operation{OperationID: "download-media", Method: http.MethodPost, Path: "/api/v1/media/download", Summary: "Download one file to the downloads directory", Tags: []string{"Media"}},
		func(ctx context.Context, input *struct {
			Body struct {
				ID       string `json:"id,omitempty" doc:"Captured media id; takes precedence over url"`
				URL      string `json:"url,omitempty" doc:"Direct URL to fetch when no id is given"`
				Filename string `json:"filename,omitempty" doc:"Override the saved filename"`
			}
		}) (*downloadOutput, error) {
			res, err := svc.DownloadMedia(ctx, input.Body.ID, input.Body.URL, input.Body.Filename)
			if err != nil {
				return nil, mapErr(err)
			}
			return &downloadOutput{Body: res}, nil
		})
}
