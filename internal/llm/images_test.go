package llm

import (
	"encoding/json"
	"testing"
)

func TestImageSetDedup(t *testing.T) {
	set := NewImageSet()
	set.Add("https://a.com/1.png", "first")
	set.Add("https://a.com/2.png", "second")
	set.Add("https://a.com/1.png", "renamed")
	set.Add("", "empty")

	if set.Len() != 2 {
		t.Fatalf("期望集合中有 2 张图片，实际为 %d", set.Len())
	}

	refs := set.List()
	if refs[0].URL != "https://a.com/1.png" || refs[1].URL != "https://a.com/2.png" {
		t.Errorf("期望保持加入顺序，实际为 %v", refs)
	}
	if refs[0].Name != "first" {
		t.Errorf("期望重复URL保留首个名字 'first'，实际为 '%s'", refs[0].Name)
	}
}

func TestCollectImages(t *testing.T) {
	raw := `{
		"answer": "ok",
		"attachment": {"type": "image", "url": "https://a.com/1.png", "filename": "cat.png", "name": "ignored"},
		"nested": {
			"files": [
				{"type": "image", "url": "https://a.com/2.png", "name": "dog.png"},
				{"type": "document", "url": "https://a.com/3.pdf"},
				{"type": "image", "url": ""},
				{"type": "image", "url": "https://a.com/1.png", "filename": "dup.png"}
			]
		}
	}`

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("测试数据解析失败: %v", err)
	}

	refs := CollectImages(decoded)
	if len(refs) != 2 {
		t.Fatalf("期望收集到 2 张图片，实际为 %d: %v", len(refs), refs)
	}

	// 键名有序遍历下 attachment 先于 nested 被发现
	if refs[0].URL != "https://a.com/1.png" || refs[0].Name != "cat.png" {
		t.Errorf("期望首张为 1.png 且 filename 优先保留 'cat.png'，实际为 %v", refs[0])
	}
	if refs[1].URL != "https://a.com/2.png" || refs[1].Name != "dog.png" {
		t.Errorf("期望第二张回退到 name 字段 'dog.png'，实际为 %v", refs[1])
	}
}

func TestCollectImagesDeterministicOrder(t *testing.T) {
	node := map[string]interface{}{
		"c": map[string]interface{}{"type": "image", "url": "https://a.com/c.png"},
		"a": map[string]interface{}{"type": "image", "url": "https://a.com/a.png"},
		"b": map[string]interface{}{"type": "image", "url": "https://a.com/b.png"},
	}

	expected := []string{"https://a.com/a.png", "https://a.com/b.png", "https://a.com/c.png"}
	for i := 0; i < 20; i++ {
		refs := CollectImages(node)
		if len(refs) != len(expected) {
			t.Fatalf("期望收集到 %d 张图片，实际为 %d", len(expected), len(refs))
		}
		for j, ref := range refs {
			if ref.URL != expected[j] {
				t.Fatalf("期望第 %d 次遍历顺序稳定为 %v，实际为 %v", i, expected, refs)
			}
		}
	}
}

func TestCollectImagesStopsInsideImageNode(t *testing.T) {
	node := map[string]interface{}{
		"file": map[string]interface{}{
			"type": "image",
			"url":  "https://a.com/outer.png",
			"meta": map[string]interface{}{"type": "image", "url": "https://a.com/inner.png"},
		},
	}

	refs := CollectImages(node)
	if len(refs) != 1 || refs[0].URL != "https://a.com/outer.png" {
		t.Errorf("期望命中图片对象后不再深入子节点，实际为 %v", refs)
	}

	// url为空的图片对象不算命中，其子节点照常遍历
	node = map[string]interface{}{
		"file": map[string]interface{}{
			"type": "image",
			"url":  "",
			"meta": map[string]interface{}{"type": "image", "url": "https://a.com/inner.png"},
		},
	}
	refs = CollectImages(node)
	if len(refs) != 1 || refs[0].URL != "https://a.com/inner.png" {
		t.Errorf("期望未命中时继续遍历子节点，实际为 %v", refs)
	}
}

func TestCollectImagesDepthLimit(t *testing.T) {
	// 超深嵌套不应panic，也不应收集超出深度的节点
	var root interface{} = map[string]interface{}{
		"type": "image", "url": "https://deep.com/x.png",
	}
	for i := 0; i < maxImageScanDepth+10; i++ {
		root = map[string]interface{}{"wrap": root}
	}

	refs := CollectImages(root)
	if len(refs) != 0 {
		t.Errorf("期望超深节点被跳过，实际收集到 %d 张", len(refs))
	}
}

func TestScanMarkdownImages(t *testing.T) {
	text := "开头 ![猫](https://a.com/cat.png) 中间 ![](https://a.com/dog.jpg) 结尾"
	refs := ScanMarkdownImages(text)

	if len(refs) != 2 {
		t.Fatalf("期望提取 2 张图片，实际为 %d", len(refs))
	}
	if refs[0].Name != "猫" || refs[0].URL != "https://a.com/cat.png" {
		t.Errorf("期望首张为 猫/cat.png，实际为 %v", refs[0])
	}
	if refs[1].Name != "" || refs[1].URL != "https://a.com/dog.jpg" {
		t.Errorf("期望第二张名字为空，实际为 %v", refs[1])
	}
}

func TestScanBareImageURLs(t *testing.T) {
	text := "看这个 https://a.com/photo.PNG 还有 http://b.com/x.webp 以及非图片 https://c.com/page.html"
	refs := ScanBareImageURLs(text)

	if len(refs) != 2 {
		t.Fatalf("期望匹配 2 个图片URL，实际为 %d: %v", len(refs), refs)
	}
	if refs[0].URL != "https://a.com/photo.PNG" {
		t.Errorf("期望大小写不敏感匹配，实际为 '%s'", refs[0].URL)
	}
}

func TestAnnotateImages(t *testing.T) {
	images := []ImageRef{
		{URL: "https://a.com/1.png", Name: "已存在"},
		{URL: "https://a.com/2.png", Name: "新图"},
		{URL: "https://a.com/3.png"},
	}

	text := "这是图片 ![已存在](https://a.com/1.png)"
	result := AnnotateImages(text, images)

	expected := text + "\n![新图](https://a.com/2.png)\n![image](https://a.com/3.png)"
	if result != expected {
		t.Errorf("期望标注结果为:\n%s\n实际为:\n%s", expected, result)
	}
}

func TestAnnotateImagesEmpty(t *testing.T) {
	if result := AnnotateImages("纯文本", nil); result != "纯文本" {
		t.Errorf("期望无图片时原样返回，实际为 '%s'", result)
	}
}
