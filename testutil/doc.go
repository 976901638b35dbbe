// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供协调引擎测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / UserContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertErrorCode
  - 异步断言: AssertEventuallyTrue，超时轮询等待条件满足
  - 时间工具: WaitForChannel / FixedClock

# 子包

  - testutil/mocks: MockBus（记录事件并按类型注入发布错误）、
    MockStore（包装协调存储并按方法注入错误）
  - testutil/fixtures: 测试数据工厂，提供预置 Agent、任务、
    团队与负载失衡场景

# 使用示例

	ctx := testutil.TestContext(t)
	bus := mocks.NewMockBus()
	_, err := orchestrator.AssignAgentToTask(ctx, req)
	testutil.AssertErrorCode(t, err, types.ErrAgentUnavailable)
*/
package testutil
