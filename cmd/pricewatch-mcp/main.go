package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/pricewatch/models"
)

func main() {
	apiURL := os.Getenv("PRICEWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRICEWATCH_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PRICEWATCH_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(newAPIClient(strings.TrimRight(apiURL, "/"), apiKey))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"pricewatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("track_product",
		mcp.WithDescription("Start tracking a Flipkart product page. Extracts title, price, rating, review count and image, and records the first price point."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Flipkart product URL (must contain /p/)"),
		),
	), handleTrack(c))

	s.AddTool(mcp.NewTool("list_products",
		mcp.WithDescription("List tracked products, newest first, optionally filtered by price range or title text."),
		mcp.WithNumber("min_price", mcp.Description("Minimum current price in rupees")),
		mcp.WithNumber("max_price", mcp.Description("Maximum current price in rupees")),
		mcp.WithString("query", mcp.Description("Case-insensitive title substring")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of products (default: 100, max: 500)")),
	), handleList(c))

	s.AddTool(mcp.NewTool("get_product",
		mcp.WithDescription("Show a tracked product with its full price history."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Product ID")),
	), handleGet(c))

	s.AddTool(mcp.NewTool("refresh_product",
		mcp.WithDescription("Re-extract a tracked product now and report whether its price changed."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Product ID")),
	), handleRefresh(c))

	s.AddTool(mcp.NewTool("untrack_product",
		mcp.WithDescription("Stop tracking a product and delete its price history."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Product ID")),
	), handleUntrack(c))

	s.AddTool(mcp.NewTool("preview_product",
		mcp.WithDescription("Extract a Flipkart product page once without tracking it. With debug, shows which selector resolved each field."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Flipkart product URL")),
		mcp.WithString("fetch_mode",
			mcp.Description("'auto' (default), 'http' or 'browser'"),
			mcp.Enum("auto", "http", "browser"),
		),
		mcp.WithBoolean("debug", mcp.Description("Include the per-field extraction trace")),
	), handlePreview(c))

	return s
}

func handleTrack(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		resp, err := c.track(ctx, u)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Now tracking:\n" + formatProduct(resp.Product)), nil
	}
}

func handleList(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		q := models.ListQuery{
			MinPrice: numberArg(args, "min_price"),
			MaxPrice: numberArg(args, "max_price"),
			Query:    request.GetString("query", ""),
			Limit:    int(numberArg(args, "limit")),
		}
		resp, err := c.list(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d tracked products\n", resp.Count)
		for i := range resp.Products {
			p := &resp.Products[i]
			fmt.Fprintf(&sb, "\n[%d] %s\n    %s | %s\n", p.ID, p.Title, formatPrice(p.Price), p.URL)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleGet(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := idArg(request)
		if !ok {
			return mcp.NewToolResultError("id is required and must be a positive number"), nil
		}
		resp, err := c.get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		sb.WriteString(formatProduct(resp.Product))
		sb.WriteString("\nPrice history:\n")
		for _, pp := range resp.History {
			fmt.Fprintf(&sb, "  %s  %s\n", pp.CheckedAt.Format("2006-01-02 15:04"), formatPrice(pp.Price))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleRefresh(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := idArg(request)
		if !ok {
			return mcp.NewToolResultError("id is required and must be a positive number"), nil
		}
		resp, err := c.refresh(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out := formatProduct(resp.Product)
		if resp.PriceChanged {
			out += fmt.Sprintf("\nPrice changed: %s -> %s", formatPrice(resp.OldPrice), formatPrice(resp.Product.Price))
		} else {
			out += "\nPrice unchanged."
		}
		if resp.Product != nil && resp.Product.LayoutDrift {
			out += "\nWarning: the page layout changed noticeably since the last check."
		}
		return mcp.NewToolResultText(out), nil
	}
}

func handleUntrack(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := idArg(request)
		if !ok {
			return mcp.NewToolResultError("id is required and must be a positive number"), nil
		}
		if err := c.untrack(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Product %d is no longer tracked.", id)), nil
	}
}

func handlePreview(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		debug, _ := request.GetArguments()["debug"].(bool)

		resp, err := c.preview(ctx, models.PreviewRequest{
			URL:       u,
			FetchMode: request.GetString("fetch_mode", ""),
			Debug:     debug,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		sb.WriteString(formatProduct(resp.Product))
		fmt.Fprintf(&sb, "\nEngine: %s, %d ms\n", resp.EngineUsed, resp.Timing.TotalMs)
		if resp.Diagnostics != nil {
			sb.WriteString("\nField trace:\n")
			for _, f := range resp.Diagnostics.Fields {
				if f.Found {
					fmt.Fprintf(&sb, "  %-8s %s via %s (%d tried)\n", f.Field, f.Strategy, f.Selector, f.Attempts)
				} else {
					fmt.Fprintf(&sb, "  %-8s not found (%d tried)\n", f.Field, f.Attempts)
				}
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func formatProduct(p *models.Product) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	if p.ID > 0 {
		fmt.Fprintf(&sb, "ID: %d\n", p.ID)
	}
	fmt.Fprintf(&sb, "Title: %s\nPrice: %s\n", p.Title, formatPrice(p.Price))
	if p.Rating > 0 {
		fmt.Fprintf(&sb, "Rating: %.1f (%d reviews)\n", p.Rating, p.Reviews)
	}
	if p.Image != "" {
		fmt.Fprintf(&sb, "Image: %s\n", p.Image)
	}
	fmt.Fprintf(&sb, "URL: %s\n", p.URL)
	return sb.String()
}

func formatPrice(p float64) string {
	if p <= 0 {
		return "unavailable"
	}
	return fmt.Sprintf("₹%.2f", p)
}

func numberArg(args map[string]any, key string) float64 {
	if f, ok := args[key].(float64); ok && f > 0 {
		return f
	}
	return 0
}

func idArg(request mcp.CallToolRequest) (int64, bool) {
	id := int64(numberArg(request.GetArguments(), "id"))
	return id, id > 0
}
