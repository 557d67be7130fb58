// Package prompt assembles the text-generation prompt from meeting metadata
// and a transcript.
package prompt

import (
	"fmt"
	"strings"
)

// Style selects the prompt template.
type Style string

const (
	// StyleSummary asks for a concise summary focused on key points and action items.
	StyleSummary Style = "summary"
	// StyleDetailed asks for full structured minutes in Traditional Chinese Markdown.
	StyleDetailed Style = "detailed"
)

const (
	notProvided = "未提供"
	none        = "無"
)

const summaryInstructions = `您的任務是查看提供的會議記錄並創建一個簡潔的摘要來捕獲基本信息，重點關注會議期間的關鍵要點和行動項目。使用清晰、專業的語言，並使用標題、副標題和項目符號等適當的格式以邏輯方式組織摘要。確保摘要易於理解，並對會議內容提供全面而簡潔的概述，特別注重明確指出每個行動項目。`

const detailedInstructions = `你現在是一位專業的會議記錄員，擅長製作詳盡而結構清晰的會議紀錄。你的任務是根據提供的 [會議逐字稿] 創建一份完整、詳細且組織有序的會議紀錄。請遵循以下指引：
1. 輸出格式：
- 使用繁體中文
- 採用 Markdown 格式

2. 會議紀錄結構：
a) 會議概要：
    - 簡要說明會議的主要目標
    - 概述會議的關鍵成果

b) 詳細討論項目：
    - 列出每個討論項目
    - 對於每個項目，詳細記錄每個討論的詳細內容

c) 重要決策：
    - 列出會議中做出的所有重要決策

d) 行動項目：
    - 記錄所有被指派的任務
    - 包括負責人和截止日期（如有提及）

e) 未解決問題：
    - 列出任何尚未解決的問題或需要後續跟進的事項

3. 內容要求：
- 確保準確捕捉所有關鍵點
- 保持客觀，不加入個人意見
- 使用清晰、專業的語言
- 適當使用標題、子標題、項目符號等，提高可讀性

4. 額外注意事項：
- 如遇到不清楚或模糊的部分，請標註 [待確認] 以便後續跟進
- 對於敏感或機密信息，請標註 [機密]
- 在紀錄中保留原始發言者的身份（如有提及）

請記住，這份會議紀錄對我的職業發展極為重要。請仔細審視並確保內容的準確性和完整性。

準備好並確認你已經已經理解了這些指示，並以我提供 [會議逐字稿] 以開始工作。`

// ParseStyle validates a style name. An empty name means StyleSummary.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleSummary:
		return StyleSummary, nil
	case StyleDetailed:
		return StyleDetailed, nil
	default:
		return "", fmt.Errorf("unknown prompt style %q", s)
	}
}

// MeetingInfo is the metadata supplied with a recording. Text is the free-form
// description; the structured fields are optional.
type MeetingInfo struct {
	Text           string `json:"meetingInfo,omitempty"`
	Name           string `json:"meetingName,omitempty"`
	Date           string `json:"meetingDate,omitempty"`
	Participants   string `json:"participants,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

func (m MeetingInfo) hasStructured() bool {
	return m.Name != "" || m.Date != "" || m.Participants != "" || m.AdditionalInfo != ""
}

// IsEmpty reports whether no metadata was supplied at all.
func (m MeetingInfo) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == "" && !m.hasStructured()
}

// Render formats the metadata block. Structured fields are listed with
// placeholders for missing values, followed by the free text. Nothing
// supplied renders as "".
func (m MeetingInfo) Render() string {
	if m.IsEmpty() {
		return ""
	}
	text := strings.TrimSpace(m.Text)
	if !m.hasStructured() && text != "" {
		return text
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "會議名稱：%s\n", orDefault(m.Name, notProvided))
	fmt.Fprintf(&sb, "會議時間：%s\n", orDefault(m.Date, notProvided))
	fmt.Fprintf(&sb, "參與人員：%s\n", orDefault(m.Participants, notProvided))
	fmt.Fprintf(&sb, "其他資訊：%s", orDefault(m.AdditionalInfo, none))
	if text != "" {
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}

// Build interpolates the meeting metadata and transcript into the template for style.
func Build(style Style, info MeetingInfo, transcript string) string {
	var sb strings.Builder

	switch style {
	case StyleDetailed:
		sb.WriteString(detailedInstructions)
		sb.WriteString("\n 本次會議的基本資訊：\n")
		sb.WriteString(info.Render())
		sb.WriteString("\n---\n 會議逐字稿：\n[[[")
		sb.WriteString(transcript)
		sb.WriteString("]]]")
	default:
		sb.WriteString(summaryInstructions)
		sb.WriteString(" ---\n 本次會議的基本資訊：\n")
		sb.WriteString(info.Render())
		sb.WriteString("\n---\n 會議錄音轉成逐字稿：\n")
		sb.WriteString(transcript)
	}

	return sb.String()
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
