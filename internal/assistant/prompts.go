package assistant

import (
	"fmt"
	"strings"
)

const classifierPrompt = `你是一个分类助手,请根据输入返回分类结果,分类根据如下
如果提问的是商品相关的提问,请返回commentary,
如果提问的是尺寸相关的提问,请返回size,
如果提问的是退换货相关问题,请返回return_exchange,
如果提问的是修改订单信息相关问题,请返回modify_information,
如果提问的是人工对接相关问题,以及如果跟上述4类无关系,请返回manual_docking,
请根据输入返回对应的分类结果,请勿返回其他内容`

func commentaryPrompt(attributeKeys []string) string {
	return strings.Join([]string{
		"你是一名专业的电商平台客服人员，请根据用户提出的问题，直接调用工具搜索相关商品信息，并以亲切、专业、简洁的客服口吻，将搜索结果清晰地回复给用户。",
		fmt.Sprintf("属性值包含[%s]", strings.Join(attributeKeys, ", ")),
		"回复内容应体现服务意识，使用如“亲亲”“您好”等常见电商客服用语，但不要提出反问或引导性问题，只需基于工具返回的信息作答即可。",
	}, "\n")
}

func summaryPrompt(userQuery, problemType string) string {
	return fmt.Sprintf(`你是一名电商平台的智能助手，请根据以下用户问题，生成一段简洁明了的客服转接摘要。
摘要需包含：用户意图、涉及的商品或订单（如有）、关键描述（如质量问题、尺寸困惑等），语气专业清晰。
不要使用 markdown，不要编号，直接输出一段话。

用户问题：%s
问题类型：%s`, userQuery, problemType)
}

func fallbackSummary(userQuery string) string {
	return "（自动生成摘要失败）原始问题：" + userQuery
}

const (
	replyApology = "亲亲，非常抱歉，系统暂时繁忙，已为您转接人工客服处理~"

	replySizeCatalogFormat   = "亲,根据商品参照表,建议您可以选择%s码哦"
	replySizeEmpiricalFormat = "亲，根据购买过此商品的买家信息，大部分与您身材相仿的都选择%s码了，所以建议您可以选择%s码哦"
	replySizeNoMatch         = "亲亲，暂时没有找到适合您身高体重的尺码呢，建议您联系人工客服为您进一步确认哦~"
	replySizeInsufficient    = "亲亲，请告诉我们商品ID以及您的身高和体重（例如：商品id为1，身高175，体重65kg），以便为您推荐合适的尺码哦~"

	replyReturnNeedOrderID = "亲亲，请提供具体订单号以便我们为您查询退换货政策哦~"
	replyReturnNoRecord    = "亲亲，未查询到该商品的购买记录，请确认是否在本店购买哦~"
	replyReturnQuality     = "亲亲，您反馈的是质量问题，我们将为您转接人工客服专员处理，请稍等~"
	replyReturnEligible    = "亲亲，您的订单符合7天无理由退换条件，请在【我的订单】中提交退换申请，我们会尽快处理哦~"
	replyReturnExpired     = "亲亲，很抱歉，您的订单已超过7天无理由退换期限，且不属于质量问题，暂时无法办理退换呢。如有特殊情况，可联系人工客服协助~"

	replyModifyUnsupported = "亲亲，在线修改订单信息的功能暂未开放，如需修改收货地址等信息，请联系人工客服协助哦~"

	replyManualDocking = "亲亲，您的问题比较特殊，已为您转接人工客服专员处理~\n" +
		"我们已将您的问题摘要提交给客服团队，他们会尽快与您联系，请保持在线哦！"

	noUserInput        = "无用户输入"
	unknownProblemType = "未知类型"
)
