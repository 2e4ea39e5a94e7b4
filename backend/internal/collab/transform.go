package collab

// Transform 把 opA 改写成在 opB 已提交之后仍保持原意图的 opA'
// 前提：两个操作基于同一个起始版本
//
// 冲突策略（固定，不可改）：
//   - opB 是 insert：插入点在 opA 之前（含同位置）时 opA 右移，同位置先提交者排前；
//     插入点落在 opA（delete）的待删区间内部时，并入该删除（opA.Length 加长）
//   - opB 是 delete：删除区间整体在 opA 之前时 opA 左移；
//     区间盖住 opA 锚点时，锚点收拢到删除起点，且 opA（delete）
//     与已删区间重叠的部分不再重复删；
//     两个 delete 区间尾部重叠时，opA 按重叠量收缩（不小于 0）
//   - retain 两侧都直接穿透，不参与变换
func Transform(opA, opB Operation) Operation {
	if opA.Type == OpRetain || opB.Type == OpRetain {
		return opA
	}

	switch opB.Type {
	case OpInsert:
		l := opB.InsertLen()
		if opB.Position <= opA.Position {
			opA.Position += l
		} else if opA.Type == OpDelete && opB.Position < opA.Position+opA.Length {
			// 插入点严格落在待删除区间内部：被删除吸收，而不是幸存下来
			opA.Length += l
		}

	case OpDelete:
		bEnd := opB.Position + opB.Length
		switch {
		case bEnd <= opA.Position:
			opA.Position -= opB.Length
		case opB.Position <= opA.Position && opA.Position < bEnd:
			// 锚点被删掉了，收拢到删除起点；
			// 待删区间里已经被 opB 删掉的那一段不能再删一次
			if opA.Type == OpDelete {
				aEnd := opA.Position + opA.Length
				overlap := bEnd
				if aEnd < bEnd {
					overlap = aEnd
				}
				opA.Length -= overlap - opA.Position
				if opA.Length < 0 {
					opA.Length = 0
				}
			}
			opA.Position = opB.Position
		case opA.Type == OpDelete && opB.Position < opA.Position+opA.Length:
			aEnd := opA.Position + opA.Length
			overlap := aEnd - opB.Position
			if overlap > opB.Length {
				overlap = opB.Length
			}
			opA.Length -= overlap
			if opA.Length < 0 {
				opA.Length = 0
			}
		}
	}
	return opA
}
