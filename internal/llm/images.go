package llm

import (
	"regexp"
	"sort"
	"strings"
)

// 递归扫描的最大嵌套深度，防止恶意构造的深层JSON拖垮遍历
const maxImageScanDepth = 32

var (
	// markdown 图片语法 ![name](url)
	markdownImagePattern = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
	// 裸露的图片URL
	bareImageURLPattern = regexp.MustCompile(`(?i)(https?://\S+\.(?:png|jpg|jpeg|gif|webp|svg))`)
)

// ImageSet 按出现顺序收集图片并按URL去重，首个名字优先
type ImageSet struct {
	order []string
	names map[string]string
}

// NewImageSet 创建空的图片集合
func NewImageSet() *ImageSet {
	return &ImageSet{names: make(map[string]string)}
}

// Add 加入一张图片，重复URL被忽略
func (s *ImageSet) Add(url, name string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	if _, exists := s.names[url]; exists {
		return
	}
	s.order = append(s.order, url)
	s.names[url] = name
}

// AddAll 批量加入图片
func (s *ImageSet) AddAll(refs []ImageRef) {
	for _, ref := range refs {
		s.Add(ref.URL, ref.Name)
	}
}

// Len 返回集合中图片数量
func (s *ImageSet) Len() int {
	return len(s.order)
}

// List 按加入顺序返回所有图片
func (s *ImageSet) List() []ImageRef {
	refs := make([]ImageRef, 0, len(s.order))
	for _, url := range s.order {
		refs = append(refs, ImageRef{URL: url, Name: s.names[url]})
	}
	return refs
}

// CollectImages 深度优先遍历已解码的JSON结构，收集所有
// type=="image" 且带非空url的对象。结果按出现顺序、URL去重。
func CollectImages(v interface{}) []ImageRef {
	set := NewImageSet()
	collectImages(v, set, 0)
	return set.List()
}

func collectImages(v interface{}, set *ImageSet, depth int) {
	if depth > maxImageScanDepth {
		return
	}

	switch node := v.(type) {
	case map[string]interface{}:
		if kind, _ := node["type"].(string); kind == "image" {
			if url, _ := node["url"].(string); url != "" {
				// 命中图片对象后不再深入其子节点
				set.Add(url, imageName(node))
				return
			}
		}
		// 按键名有序遍历，保证发现顺序稳定
		keys := make([]string, 0, len(node))
		for key := range node {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			collectImages(node[key], set, depth+1)
		}
	case []interface{}:
		for _, child := range node {
			collectImages(child, set, depth+1)
		}
	}
}

// imageName 从图片对象中取展示名，filename 优先于 name
func imageName(node map[string]interface{}) string {
	if name, _ := node["filename"].(string); name != "" {
		return name
	}
	if name, _ := node["name"].(string); name != "" {
		return name
	}
	return ""
}

// ScanMarkdownImages 提取文本中所有 markdown 图片引用
func ScanMarkdownImages(text string) []ImageRef {
	var refs []ImageRef
	for _, match := range markdownImagePattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, ImageRef{Name: match[1], URL: match[2]})
	}
	return refs
}

// ScanBareImageURLs 提取文本中所有裸露的图片URL
func ScanBareImageURLs(text string) []ImageRef {
	var refs []ImageRef
	for _, match := range bareImageURLPattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, ImageRef{URL: match[1]})
	}
	return refs
}

// AnnotateImages 确保每张图片都以 markdown 形式出现在文本中。
// URL已在文本里出现的图片跳过，其余按顺序以 "\n![name](url)" 追加，
// 名字为空时退回 "image"。
func AnnotateImages(text string, images []ImageRef) string {
	var sb strings.Builder
	sb.WriteString(text)

	for _, img := range images {
		if img.URL == "" || strings.Contains(text, img.URL) {
			continue
		}
		name := img.Name
		if name == "" {
			name = "image"
		}
		sb.WriteString("\n![")
		sb.WriteString(name)
		sb.WriteString("](")
		sb.WriteString(img.URL)
		sb.WriteString(")")
	}

	return sb.String()
}
