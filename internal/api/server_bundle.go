package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/audiosniff/internal/archive"
)

type bundleIDInput struct {
	BundleID string `path:"bundle_id" doc:"Bundle archive id"`
}

func bundleURL(id string) string {
	return "/api/v1/bundles/" + id + "/archive"
}

func registerBundleHandlers(api huma.API, svc Service) {
	type createBundleOutput struct {
		Body struct {
			Bundle archive.Meta `json:"bundle"`
			URL    string       `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "bundle-media", Method: http.MethodPost, Path: "/api/v1/media/bundle", Summary: "Bundle captured audio into a zip archive", Description: "Entries whose fetch fails are skipped and listed in the bundle metadata.", Tags: []string{"Bundles"}},
		func(ctx context.Context, input *struct {
			Body struct {
				IDs []string `json:"ids,omitempty" doc:"Captured media ids to include"`
				All bool     `json:"all,omitempty" doc:"Include every captured record"`
			}
		}) (*createBundleOutput, error) {
			meta, err := svc.BundleMedia(ctx, input.Body.IDs, input.Body.All)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &createBundleOutput{}
			out.Body.Bundle = meta
			out.Body.URL = bundleURL(meta.ID)
			return out, nil
		})

	type listBundlesOutput struct {
		Body struct {
			Bundles []archive.Meta `json:"bundles"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-bundles", Method: http.MethodGet, Path: "/api/v1/bundles", Summary: "List stored bundle archives", Tags: []string{"Bundles"}},
		func(ctx context.Context, input *struct{}) (*listBundlesOutput, error) {
			metas, err := svc.ListBundles(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listBundlesOutput{}
			out.Body.Bundles = metas
			if out.Body.Bundles == nil {
				out.Body.Bundles = []archive.Meta{}
			}
			return out, nil
		})

	type getBundleOutput struct {
		Body archive.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-bundle", Method: http.MethodGet, Path: "/api/v1/bundles/{bundle_id}", Summary: "Get bundle metadata", Tags: []string{"Bundles"}},
		func(ctx context.Context, input *bundleIDInput) (*getBundleOutput, error) {
			meta, err := svc.GetBundle(ctx, input.BundleID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getBundleOutput{Body: meta}, nil
		})

	type archiveOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}
	huma.Register(api, huma.Operation{OperationID: "get-bundle-archive", Method: http.MethodGet, Path: "/api/v1/bundles/{bundle_id}/archive", Summary: "Download bundle zip", Tags: []string{"Bundles"}},
		func(ctx context.Context, input *bundleIDInput) (*archiveOutput, error) {
			data, meta, err := svc.ReadBundle(ctx, input.BundleID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &archiveOutput{
				ContentType:        "application/zip",
				ContentDisposition: `attachment; filename="` + meta.Name + `"`,
				Body:               data,
			}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-bundle", Method: http.MethodDelete, Path: "/api/v1/bundles/{bundle_id}", Summary: "Delete bundle archive", Tags: []string{"Bundles"}},
		func(ctx context.Context, input *bundleIDInput) (*statusOutput, error) {
			if err := svc.DeleteBundle(ctx, input.BundleID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
