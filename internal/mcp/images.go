package mcp

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"snowball/internal/llm"
	"snowball/internal/util"
)

// 单张图片下载的大小上限
const maxImageBytes = 8 << 20

// FetchedImage 已下载的一张图片
type FetchedImage struct {
	Data     []byte
	MIMEType string
	URL      string
}

// CollectReplyImageURLs 汇总一条回复涉及的所有图片URL：
// 结构化图片引用、文本中的 markdown 图片与裸露图片链接。
// 按出现顺序去重，非 http(s) 链接跳过。
func CollectReplyImageURLs(reply *llm.Reply) []string {
	set := llm.NewImageSet()
	set.AddAll(reply.Images)
	set.AddAll(llm.ScanMarkdownImages(reply.Text))
	set.AddAll(llm.ScanBareImageURLs(reply.Text))

	var urls []string
	for _, ref := range set.List() {
		if !strings.HasPrefix(ref.URL, "http") {
			continue
		}
		urls = append(urls, ref.URL)
	}
	return urls
}

// NewImageFetcher 创建图片下载客户端
func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	return &ImageFetcher{client: &http.Client{Timeout: timeout}}
}

// ImageFetcher 下载回复中引用的图片
type ImageFetcher struct {
	client *http.Client
}

// Fetch 下载一张图片，Content-Type 缺失时默认 image/png
func (f *ImageFetcher) Fetch(ctx context.Context, url string) (*FetchedImage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, util.WrapError(util.ErrCodeInvalidParam, "构造图片请求失败", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, util.WrapError(util.ErrCodeNetworkFailed, "下载图片失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, util.NewErrorWithDetails(util.ErrCodeAPIRequestFailed,
			"下载图片失败", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, util.WrapError(util.ErrCodeNetworkFailed, "读取图片数据失败", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/png"
	}

	return &FetchedImage{Data: data, MIMEType: mimeType, URL: url}, nil
}

// FetchAll 逐个下载图片，失败的跳过并记录日志
func (f *ImageFetcher) FetchAll(ctx context.Context, urls []string) []*FetchedImage {
	var images []*FetchedImage
	for _, url := range urls {
		util.Debugw("下载回复图片", map[string]interface{}{"url": url})
		image, err := f.Fetch(ctx, url)
		if err != nil {
			util.Warnw("图片下载失败，已跳过", map[string]interface{}{
				"url":   url,
				"error": err,
			})
			continue
		}
		images = append(images, image)
	}
	return images
}
