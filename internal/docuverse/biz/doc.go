// Package biz 实现 docuverse 的检索增强问答核心：
// 嵌入服务选择、按会话的索引管理、提示词组装、带韧性的模型调用、
// 带缓存的问答引擎，以及把这些组件串起来的会话服务。
package biz
