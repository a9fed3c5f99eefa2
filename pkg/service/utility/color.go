/*
 * @Description: 图片主色调提取服务
 * @Author: 青澜
 * @Date: 2025-09-14 10:33:18
 * @LastEditTime: 2026-04-06 16:48:20
 * @LastEditors: 青澜
 */
package utility

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/EdlinOrg/prominentcolor"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ColorService 用 K-Means 聚类提取图片主色调，作为资产元数据的补充。
type ColorService struct{}

// NewColorService 创建主色调服务实例。
func NewColorService() *ColorService {
	return &ColorService{}
}

// GetPrimaryColor 返回图片主色调的十六进制表示（如 "#1e90ff"）。
func (s *ColorService) GetPrimaryColor(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("解码图片失败: %w", err)
	}

	colors, err := prominentcolor.KmeansWithArgs(1, img)
	if err != nil {
		return "", fmt.Errorf("提取主色调失败: %w", err)
	}
	if len(colors) == 0 {
		return "", fmt.Errorf("未能找到任何主色调")
	}

	c := colors[0].Color
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
}
