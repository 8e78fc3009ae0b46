package gen

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rzhai/acmtrack/internal/models"
)

const maxAutoTags = 8

// English-to-Chinese tag aliases. Models occasionally ignore the Chinese-only
// instruction; known English tags are mapped, unknown ones are dropped.
var tagAliases = map[string]string{
	"dp":                  "动态规划",
	"dynamic programming": "动态规划",
	"greedy":              "贪心",
	"graph":               "图论",
	"graphs":              "图论",
	"graph theory":        "图论",
	"math":                "数学",
	"mathematics":         "数学",
	"binary search":       "二分查找",
	"dfs":                 "深度优先搜索",
	"bfs":                 "广度优先搜索",
	"two pointers":        "双指针",
	"sort":                "排序",
	"sorting":             "排序",
	"string":              "字符串",
	"strings":             "字符串",
	"number theory":       "数论",
	"combinatorics":       "组合数学",
	"geometry":            "计算几何",
	"data structure":      "数据结构",
	"data structures":     "数据结构",
	"segment tree":        "线段树",
	"bitmask":             "位运算",
	"bitmasks":            "位运算",
	"bitwise":             "位运算",
	"implementation":      "模拟",
	"constructive":        "构造",
	"brute force":         "暴力枚举",
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// BuildTagPrompt renders the auto-tag prompt. The problem payload is embedded
// as JSON, with free-text fields bounded so oversized statements do not blow
// the context window.
func BuildTagPrompt(problem *models.ProblemRecord, solutionMarkdown string) (string, error) {
	payload := map[string]any{
		"source":         problem.Source,
		"id":             problem.ID,
		"title":          problem.Title,
		"content":        trimText(problem.Content, 4000),
		"input_format":   trimText(problem.InputFormat, 1200),
		"output_format":  trimText(problem.OutputFormat, 1200),
		"constraints":    trimText(problem.Constraints, 1200),
		"reflection":     trimText(problem.Reflection, 1200),
		"my_ac_code":     trimText(problem.MyACCode, 2000),
		"my_ac_language": problem.MyACLanguage,
	}
	if strings.TrimSpace(solutionMarkdown) != "" {
		payload["solution_markdown"] = trimText(solutionMarkdown, 12000)
	}
	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tag payload: %w", err)
	}

	var b strings.Builder
	b.WriteString("你是一名 ACM/ICPC 竞赛教练。请根据题目信息生成算法标签与难度。\n")
	b.WriteString("输出必须是一个 JSON 对象，且只能包含这两个字段：\n")
	b.WriteString("{\n  \"tags\": [\"中文标签1\", \"中文标签2\"],\n  \"difficulty\": 1700\n}\n\n")
	b.WriteString("要求：\n")
	b.WriteString("1) tags 必须是中文算法标签；\n")
	b.WriteString("2) difficulty 必须使用 Codeforces 风格区间 800-3500；\n")
	b.WriteString("3) difficulty 必须是 100 的倍数；\n")
	b.WriteString("4) 禁止输出任何 JSON 之外的解释文本。\n\n")
	b.WriteString("可参考标签（可增减，但必须中文）：动态规划、贪心、图论、数学、二分查找、")
	b.WriteString("深度优先搜索、广度优先搜索、双指针、排序、字符串、数论、组合数学、")
	b.WriteString("计算几何、数据结构、线段树、位运算、模拟、构造、暴力枚举。\n\n")
	b.WriteString("题目信息如下：\n")
	b.WriteString("```json\n")
	b.Write(payloadJSON)
	b.WriteString("\n```")
	return b.String(), nil
}

func containsCJK(text string) bool {
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}

func normalizeTag(raw string) string {
	tag := whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
	if tag == "" {
		return ""
	}
	if containsCJK(tag) {
		return tag
	}
	key := strings.ToLower(tag)
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.ReplaceAll(key, "-", " ")
	key = strings.TrimSpace(whitespaceRun.ReplaceAllString(key, " "))
	return tagAliases[key]
}

// normalizeDifficulty rounds to the nearest hundred and clamps onto the
// Codeforces rating range.
func normalizeDifficulty(raw json.RawMessage) (int, error) {
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, errors.New("auto-tag response missing valid difficulty")
		}
		var digits strings.Builder
		for _, ch := range text {
			if ch >= '0' && ch <= '9' {
				digits.WriteRune(ch)
			}
		}
		if digits.Len() == 0 {
			return 0, errors.New("auto-tag response missing valid difficulty")
		}
		fmt.Sscanf(digits.String(), "%f", &value)
	}
	rounded := int(math.Round(value/100.0)) * 100
	if rounded < 800 {
		rounded = 800
	}
	if rounded > 3500 {
		rounded = 3500
	}
	return rounded, nil
}

// ParseTagResponse extracts the tags and difficulty from an auto-tag model
// response. Tags are deduplicated, normalized to Chinese, and capped at
// eight; the response must yield at least one valid tag.
func ParseTagResponse(raw string) ([]string, int, error) {
	objectText, err := extractJSONObject(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("auto-tag response: %w", err)
	}
	var parsed struct {
		Tags       []string        `json:"tags"`
		Difficulty json.RawMessage `json:"difficulty"`
	}
	if err := json.Unmarshal([]byte(objectText), &parsed); err != nil {
		return nil, 0, fmt.Errorf("auto-tag response is not valid JSON: %w", err)
	}

	var tags []string
	seen := map[string]struct{}{}
	for _, raw := range parsed.Tags {
		tag := normalizeTag(raw)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxAutoTags {
			break
		}
	}
	if len(tags) == 0 {
		return nil, 0, errors.New("auto-tag response does not contain valid Chinese tags")
	}

	difficulty, err := normalizeDifficulty(parsed.Difficulty)
	if err != nil {
		return nil, 0, err
	}
	return tags, difficulty, nil
}
